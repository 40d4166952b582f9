package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	partitionKey = "DateKey"
	sortKey      = "CallID"
)

// Store is a call-log backend that can be written to and read by date
type Store interface {
	PutCallLog(ctx context.Context, entry types.DynamoCallLog) (types.DynamoCallLog, error)
	Rows(ctx context.Context, date string) (types.RowSet, error)
	TruncateDate(ctx context.Context, date string) (int, error)
}

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client  *dynamodb.Client
	config  DynamoConfig
	columns calllog.Columns
	logger  zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, columns calllog.Columns, logger zerolog.Logger) (*DynamoDBStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: DYNAMO_MODE must be local or aws", types.ErrConfigurationMissing)
	}

	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client:  client,
		config:  cfg,
		columns: columns,
		logger:  logger.With().Str("component", "dynamodb").Logger(),
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTableIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.CallLogTable).
		Msg("DynamoDB call log initialized")

	return store, nil
}

// PutCallLog stores one call. A missing CallID is generated and a missing
// DateKey is derived from Start.
func (s *DynamoDBStore) PutCallLog(ctx context.Context, entry types.DynamoCallLog) (types.DynamoCallLog, error) {
	entry, err := prepareEntry(entry)
	if err != nil {
		return entry, err
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return entry, fmt.Errorf("failed to marshal call log entry: %w", err)
	}

	start := time.Now()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.CallLogTable),
		Item:      item,
	})
	metrics.ObserveUpstream("dynamodb", "put", start, err)
	if err != nil {
		return entry, fmt.Errorf("%w: failed to save call log entry: %v", types.ErrUpstreamUnavailable, err)
	}
	return entry, nil
}

func prepareEntry(entry types.DynamoCallLog) (types.DynamoCallLog, error) {
	if entry.CallID == "" {
		entry.CallID = uuid.New().String()
	}
	if entry.DateKey == "" {
		ts, ok := calllog.ParseTimestamp(entry.Start)
		if !ok {
			return entry, fmt.Errorf("%w: cannot derive date from start %q", types.ErrMalformedInput, entry.Start)
		}
		entry.DateKey = ts.Date
	}
	return entry, nil
}

// Rows queries one date partition and renders it as a header plus rows
// using the configured call-log column names.
func (s *DynamoDBStore) Rows(ctx context.Context, date string) (types.RowSet, error) {
	entries, err := s.query(ctx, date)
	if err != nil {
		return types.RowSet{}, err
	}

	s.logger.Debug().Str("date", date).Int("items", len(entries)).Msg("call log partition read")
	return RenderRows(s.config.CallLogTable, s.columns, entries), nil
}

// RenderRows lays entries out the way the call-log worksheet does
func RenderRows(origin string, cols calllog.Columns, entries []types.DynamoCallLog) types.RowSet {
	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, []string{cols.Start, cols.Caller, cols.Duration, "call_id"})
	for _, e := range entries {
		rows = append(rows, []string{e.Start, e.Caller, e.Duration, e.CallID})
	}
	return types.RowSet{Origin: origin, Rows: rows}
}

func (s *DynamoDBStore) query(ctx context.Context, date string) ([]types.DynamoCallLog, error) {
	keyCond := expression.Key(partitionKey).Equal(expression.Value(date))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallLogTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var entries []types.DynamoCallLog
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		metrics.ObserveUpstream("dynamodb", "query", start, err)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to query call log: %v", types.ErrUpstreamUnavailable, err)
		}

		var batch []types.DynamoCallLog
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call log: %w", err)
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

// TruncateDate deletes one date partition (batch delete in groups of 25)
func (s *DynamoDBStore) TruncateDate(ctx context.Context, date string) (int, error) {
	entries, err := s.query(ctx, date)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := 0; i < len(entries); i += 25 {
		end := i + 25
		if end > len(entries) {
			end = len(entries)
		}

		requests := make([]dbtypes.WriteRequest, 0, end-i)
		for _, e := range entries[i:end] {
			requests = append(requests, dbtypes.WriteRequest{
				DeleteRequest: &dbtypes.DeleteRequest{
					Key: map[string]dbtypes.AttributeValue{
						partitionKey: &dbtypes.AttributeValueMemberS{Value: e.DateKey},
						sortKey:      &dbtypes.AttributeValueMemberS{Value: e.CallID},
					},
				},
			})
		}

		n, err := batchDelete(ctx, s.client, s.config.CallLogTable, requests)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	s.logger.Info().Str("date", date).Int("deleted", deleted).Msg("call log partition truncated")
	return deleted, nil
}

const maxBatchAttempts = 5

type batchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// batchDelete sends one batch and resubmits whatever DynamoDB reports as
// unprocessed, backing off between attempts. It returns how many deletes
// were accepted.
func batchDelete(ctx context.Context, client batchWriter, table string, requests []dbtypes.WriteRequest) (int, error) {
	deleted := 0
	backoff := 50 * time.Millisecond
	for attempt := 1; len(requests) > 0; attempt++ {
		start := time.Now()
		out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dbtypes.WriteRequest{table: requests},
		})
		metrics.ObserveUpstream("dynamodb", "batch_delete", start, err)
		if err != nil {
			return deleted, fmt.Errorf("%w: failed to delete call log entries: %v", types.ErrUpstreamUnavailable, err)
		}

		var unprocessed []dbtypes.WriteRequest
		if out != nil {
			unprocessed = out.UnprocessedItems[table]
		}
		deleted += len(requests) - len(unprocessed)
		requests = unprocessed
		if len(requests) == 0 {
			break
		}
		if attempt == maxBatchAttempts {
			return deleted, fmt.Errorf("%w: %d call log deletes left unprocessed after %d attempts", types.ErrUpstreamUnavailable, len(requests), attempt)
		}

		select {
		case <-ctx.Done():
			return deleted, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return deleted, nil
}
