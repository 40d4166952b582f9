package types

// CallRecord is one logged call taken from a call-log row
type CallRecord struct {
	Caller        string            `json:"caller"`
	StartDateTime string            `json:"startDateTime"`
	DurationText  string            `json:"durationText"`
	Extra         map[string]string `json:"extra,omitempty"` // columns the aggregator does not use
}

// ParsedTimestamp is the normalized form of a call-log start time
type ParsedTimestamp struct {
	Date string `json:"date"` // YYYY-MM-DD
	Hour int    `json:"hour"` // 0-23
	Time string `json:"time"`
	Raw  string `json:"raw"`
}

// RowSet is a raw table read from a record source. Rows[0] is the header.
type RowSet struct {
	Origin string     `json:"origin"` // worksheet title or table name the rows came from
	Rows   [][]string `json:"rows"`
}

// DynamoCallLog is a call-log entry as stored in DynamoDB
type DynamoCallLog struct {
	DateKey  string `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID   string `json:"callId" dynamodbav:"CallID"`   // sort key
	Caller   string `json:"caller" dynamodbav:"Caller"`
	Start    string `json:"start" dynamodbav:"Start"`       // raw start timestamp as logged
	Duration string `json:"duration" dynamodbav:"Duration"` // H:MM:SS or MM:SS
}
