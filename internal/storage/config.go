package storage

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
	DynamoModeNone  DynamoMode = "none"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode         DynamoMode
	Endpoint     string // for local mode
	Region       string
	CallLogTable string
}

// Enabled reports whether a DynamoDB connection is configured
func (c DynamoConfig) Enabled() bool {
	return c.Mode == DynamoModeLocal || c.Mode == DynamoModeAWS
}
