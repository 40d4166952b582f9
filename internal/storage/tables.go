package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// CreateTableIfNotExist creates the call-log table for local development
func CreateTableIfNotExist(ctx context.Context, client *dynamodb.Client, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.CallLogTable),
	})
	if err == nil {
		logger.Info().Str("table", config.CallLogTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.CallLogTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(partitionKey), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(sortKey), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(partitionKey), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(sortKey), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.CallLogTable, err)
	}
	logger.Info().Str("table", config.CallLogTable).Msg("table created")
	return nil
}
