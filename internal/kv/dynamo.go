package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	maxBatchAttempts   = 5
	unprocessedBackoff = 50 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoTable.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// TableAdminAPI is the subset of the DynamoDB client used by EnsureTable.
type TableAdminAPI interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var (
	_ DynamoAPI     = (*dynamodb.Client)(nil)
	_ TableAdminAPI = (*dynamodb.Client)(nil)
	_ Table         = (*DynamoTable)(nil)
)

// DynamoTable implements Table on a DynamoDB table keyed by PK and SK.
type DynamoTable struct {
	client DynamoAPI
	name   string
}

// NewDynamoTable returns a Table backed by the named DynamoDB table.
func NewDynamoTable(client DynamoAPI, tableName string) *DynamoTable {
	return &DynamoTable{client: client, name: tableName}
}

// Name returns the table name.
func (t *DynamoTable) Name() string {
	return t.name
}

// Get fetches a single row with a consistent read.
func (t *DynamoTable) Get(ctx context.Context, key Key, projection []string) (Record, error) {
	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return Record{}, fmt.Errorf("marshalling key: %w", err)
	}
	in := &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            av,
		ConsistentRead: aws.Bool(true),
	}
	if len(projection) > 0 {
		expr, err := expression.NewBuilder().WithProjection(namesList(projection)).Build()
		if err != nil {
			return Record{}, fmt.Errorf("building projection: %w", err)
		}
		in.ProjectionExpression = expr.Projection()
		in.ExpressionAttributeNames = expr.Names()
	}

	out, err := t.client.GetItem(ctx, in)
	if err != nil {
		return Record{}, fmt.Errorf("getting item %s/%s: %w", key.PK, key.SK, err)
	}
	if len(out.Item) == 0 {
		return Record{}, ErrNotFound
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding item %s/%s: %w", key.PK, key.SK, err)
	}
	return rec, nil
}

// Put writes a whole row.
func (t *DynamoTable) Put(ctx context.Context, rec Record, ifNotExists bool) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshalling item %s/%s: %w", rec.PK, rec.SK, err)
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	}
	if ifNotExists {
		cond := expression.AttributeNotExists(expression.Name(AttrPK))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return fmt.Errorf("building condition: %w", err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
	}

	if _, err := t.client.PutItem(ctx, in); err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("putting item %s/%s: %w", rec.PK, rec.SK, err)
	}
	return nil
}

// Delete removes a row if present.
func (t *DynamoTable) Delete(ctx context.Context, key Key) error {
	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return fmt.Errorf("marshalling key: %w", err)
	}
	_, err = t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       av,
	})
	if err != nil {
		return fmt.Errorf("deleting item %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// Query pages through every row of pk whose sort key starts with skPrefix.
func (t *DynamoTable) Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error) {
	keyCond := expression.Key(AttrPK).Equal(expression.Value(pk)).
		And(expression.Key(AttrSK).BeginsWith(skPrefix))
	b := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(opts.Projection) > 0 {
		b = b.WithProjection(namesList(opts.Projection))
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var (
		records  []Record
		startKey map[string]types.AttributeValue
	)
	for {
		in := &dynamodb.QueryInput{
			TableName:                 aws.String(t.name),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
			ConsistentRead:            aws.Bool(true),
		}
		if opts.Limit > 0 {
			in.Limit = aws.Int32(int32(opts.Limit - len(records)))
		}

		out, err := t.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("querying %s/%s*: %w", pk, skPrefix, err)
		}
		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decoding %s/%s* page: %w", pk, skPrefix, err)
		}
		records = append(records, page...)

		if len(out.LastEvaluatedKey) == 0 || (opts.Limit > 0 && len(records) >= opts.Limit) {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return records, nil
}

// BatchWrite applies up to MaxBatchSize puts and deletes, resubmitting
// unprocessed items a bounded number of times.
func (t *DynamoTable) BatchWrite(ctx context.Context, puts []Record, deletes []Key) error {
	n := len(puts) + len(deletes)
	if n == 0 {
		return nil
	}
	if n > MaxBatchSize {
		return fmt.Errorf("%d writes: %w", n, ErrBatchTooLarge)
	}

	reqs := make([]types.WriteRequest, 0, n)
	for _, rec := range puts {
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return fmt.Errorf("marshalling item %s/%s: %w", rec.PK, rec.SK, err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	for _, key := range deletes {
		av, err := attributevalue.MarshalMap(key)
		if err != nil {
			return fmt.Errorf("marshalling key: %w", err)
		}
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: av}})
	}

	pending := map[string][]types.WriteRequest{t.name: reqs}
	for attempt := 1; ; attempt++ {
		out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch writing %d items: %w", n, err)
		}
		if len(out.UnprocessedItems[t.name]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		if attempt == maxBatchAttempts {
			return fmt.Errorf("%d of %d items: %w", len(pending[t.name]), n, ErrUnprocessed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * unprocessedBackoff):
		}
	}
}

// Update applies a partial update with a single UpdateItem call.
func (t *DynamoTable) Update(ctx context.Context, key Key, upd Update) error {
	upd = upd.normalized()
	if upd.empty() {
		return nil
	}

	var ub expression.UpdateBuilder
	for _, name := range sortedKeys(upd.Set) {
		ub = ub.Set(expression.Name(name), expression.Value(upd.Set[name]))
	}
	for _, name := range upd.Remove {
		ub = ub.Remove(expression.Name(name))
	}
	for _, name := range sortedKeys(upd.DeleteFromSet) {
		ub = ub.Delete(expression.Name(name), expression.Value(StringSet(upd.DeleteFromSet[name])))
	}

	b := expression.NewBuilder().WithUpdate(ub)
	if upd.IfExists {
		b = b.WithCondition(expression.AttributeExists(expression.Name(AttrPK)))
	}
	expr, err := b.Build()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return fmt.Errorf("marshalling key: %w", err)
	}
	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       av,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("updating item %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// EnsureTable creates the table with a PK/SK string key schema if it does
// not exist yet and waits until it is active.
func EnsureTable(ctx context.Context, client TableAdminAPI, tableName string, wait time.Duration) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	if err == nil {
		return nil
	}
	var rnfe *types.ResourceNotFoundException
	if !errors.As(err, &rnfe) {
		return fmt.Errorf("describing table %s: %w", tableName, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrSK), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		return fmt.Errorf("creating table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, wait); err != nil {
		return fmt.Errorf("waiting for table %s: %w", tableName, err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func namesList(names []string) expression.ProjectionBuilder {
	proj := expression.NamesList(expression.Name(names[0]))
	for _, name := range names[1:] {
		proj = proj.AddNames(expression.Name(name))
	}
	return proj
}
