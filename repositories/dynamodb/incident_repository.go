// Package dynamodb stores incidents in a DynamoDB table keyed by
// (incidentId, eventTime) with a global secondary index on
// (severity, eventTime).
package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/upb/trailguard/config"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client used by the repository
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// item is the stored attribute layout. The actor is kept under
// "userIdentity" and the payload as a JSON string so tables written by the
// earlier Lambda processor stay readable.
type item struct {
	IncidentID      string `dynamodbav:"incidentId"`
	EventTime       string `dynamodbav:"eventTime"`
	EventID         string `dynamodbav:"eventId"`
	EventName       string `dynamodbav:"eventName"`
	Actor           string `dynamodbav:"userIdentity"`
	SourceIPAddress string `dynamodbav:"sourceIPAddress"`
	Severity        string `dynamodbav:"severity"`
	IsSensitive     bool   `dynamodbav:"isSensitive"`
	ActorHourKey    string `dynamodbav:"actorHourKey"`
	RawEvent        string `dynamodbav:"rawEvent,omitempty"`
}

// NewClient builds a DynamoDB client from the default AWS credential chain
func NewClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// IncidentRepository implements repositories.IncidentRepository on DynamoDB
type IncidentRepository struct {
	client    API
	table     string
	indexName string
	logger    *zap.Logger
}

// NewIncidentRepository creates a DynamoDB-backed incident repository
func NewIncidentRepository(client API, table, indexName string, logger *zap.Logger) *IncidentRepository {
	if indexName == "" {
		indexName = config.DefaultSeverityIndex
	}
	return &IncidentRepository{
		client:    client,
		table:     table,
		indexName: indexName,
		logger:    logger,
	}
}

// Put issues an unconditional PutItem
func (r *IncidentRepository) Put(ctx context.Context, incident *models.Incident) error {
	av, err := attributevalue.MarshalMap(toItem(incident))
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put incident: %w", err)
	}

	r.logger.Debug("incident stored",
		zap.String("incident_id", incident.IncidentID),
		zap.String("event_time", incident.EventTime))
	return nil
}

// QueryBySeverity queries the severity index; LowerBound becomes a key
// condition on eventTime
func (r *IncidentRepository) QueryBySeverity(ctx context.Context, q repositories.IncidentQuery) (*repositories.IncidentPage, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("#sev = :sev"),
		ExpressionAttributeNames: map[string]string{
			"#sev": repositories.KeySeverity,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sev": &types.AttributeValueMemberS{Value: string(q.Severity)},
		},
		ScanIndexForward: aws.Bool(!q.Descending),
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if q.LowerBound != "" {
		input.KeyConditionExpression = aws.String("#sev = :sev AND #t >= :from")
		input.ExpressionAttributeNames["#t"] = repositories.KeyEventTime
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberS{Value: q.LowerBound}
	}
	if q.ExclusiveStartKey != nil {
		input.ExclusiveStartKey = keyToAttributes(q.ExclusiveStartKey)
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query severity index: %w", err)
	}

	var items []item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal incidents: %w", err)
	}

	page := &repositories.IncidentPage{Items: make([]*models.Incident, 0, len(items))}
	for i := range items {
		page.Items = append(page.Items, items[i].toIncident())
	}
	if len(out.LastEvaluatedKey) > 0 {
		page.LastEvaluatedKey = attributesToKey(out.LastEvaluatedKey)
	}
	return page, nil
}

// SupportsSortKeyRange is true: eventTime is the index sort key
func (r *IncidentRepository) SupportsSortKeyRange() bool {
	return true
}

// HealthCheck describes the table
func (r *IncidentRepository) HealthCheck(ctx context.Context) error {
	if _, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	}); err != nil {
		return fmt.Errorf("dynamodb health check failed: %w", err)
	}
	return nil
}

func toItem(incident *models.Incident) item {
	return item{
		IncidentID:      incident.IncidentID,
		EventTime:       incident.EventTime,
		EventID:         incident.EventID,
		EventName:       incident.EventName,
		Actor:           incident.Actor,
		SourceIPAddress: incident.SourceIPAddress,
		Severity:        string(incident.Severity),
		IsSensitive:     incident.IsSensitive,
		ActorHourKey:    incident.ActorHourKey,
		RawEvent:        string(incident.RawEvent),
	}
}

func (it item) toIncident() *models.Incident {
	incident := &models.Incident{
		IncidentID:      it.IncidentID,
		EventTime:       it.EventTime,
		EventID:         it.EventID,
		EventName:       it.EventName,
		Actor:           it.Actor,
		SourceIPAddress: it.SourceIPAddress,
		Severity:        models.Severity(it.Severity),
		IsSensitive:     it.IsSensitive,
		ActorHourKey:    it.ActorHourKey,
	}
	switch {
	case it.RawEvent == "":
	case json.Valid([]byte(it.RawEvent)):
		incident.RawEvent = []byte(it.RawEvent)
	default:
		quoted, _ := json.Marshal(it.RawEvent)
		incident.RawEvent = quoted
	}
	return incident
}

func keyToAttributes(key repositories.Key) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(key))
	for name, value := range key {
		out[name] = &types.AttributeValueMemberS{Value: value}
	}
	return out
}

// attributesToKey keeps string attributes only; every key attribute of the
// table and index is a string
func attributesToKey(attrs map[string]types.AttributeValue) repositories.Key {
	key := make(repositories.Key, len(attrs))
	for name, value := range attrs {
		if s, ok := value.(*types.AttributeValueMemberS); ok {
			key[name] = s.Value
		}
	}
	return key
}
