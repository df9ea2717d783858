package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/okian/trials/internal/domain/model"
)

const (
	driverDynamo         = "dynamodb"
	defaultAttemptsTable = "trials-attempts"
	defaultAthletesTable = "trials-athletes"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// attemptItem is the DynamoDB shape of a TestAttempt, keyed by id.
type attemptItem struct {
	ID                string         `dynamodbav:"id"`
	UserID            string         `dynamodbav:"userId"`
	TestType          model.TestType `dynamodbav:"testType"`
	VideoURL          string         `dynamodbav:"videoUrl"`
	AnnotatedVideoURL *string        `dynamodbav:"annotatedVideoUrl,omitempty"`
	Status            model.Status   `dynamodbav:"status"`
	Result            *string        `dynamodbav:"result,omitempty"`
	Score             *int           `dynamodbav:"score,omitempty"`
	Remarks           *string        `dynamodbav:"remarks,omitempty"`
	AssessedBy        *string        `dynamodbav:"assessedBy,omitempty"`
	AssessedAt        *time.Time     `dynamodbav:"assessedAt,omitempty"`
	CreatedAt         time.Time      `dynamodbav:"createdAt"`
}

// athleteItem is the DynamoDB shape of an AthleteProfile, keyed by id.
type athleteItem struct {
	ID        string    `dynamodbav:"id"`
	ClerkID   string    `dynamodbav:"clerkId,omitempty"`
	Name      string    `dynamodbav:"name"`
	Age       int       `dynamodbav:"age,omitempty"`
	Gender    string    `dynamodbav:"gender,omitempty"`
	Sport     string    `dynamodbav:"sport,omitempty"`
	Height    float64   `dynamodbav:"height,omitempty"`
	Weight    float64   `dynamodbav:"weight,omitempty"`
	City      string    `dynamodbav:"city,omitempty"`
	Contact   string    `dynamodbav:"contact,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

// DynamoStore is a Store backed by two DynamoDB tables keyed by "id".
// Listings scan and order in process.
type DynamoStore struct {
	client        DynamoAPI
	attemptsTable string
	athletesTable string
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore on client.
func NewDynamoStore(client DynamoAPI, opts ...DynamoOption) *DynamoStore {
	s := &DynamoStore{
		client:        client,
		attemptsTable: defaultAttemptsTable,
		athletesTable: defaultAthletesTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}

func (s *DynamoStore) CreateAttempt(ctx context.Context, a model.TestAttempt) error {
	defer observe(driverDynamo, "create_attempt", time.Now())
	item, err := attributevalue.MarshalMap(attemptItem(a))
	if err != nil {
		return fmt.Errorf("create attempt %s: marshal: %w", a.ID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.attemptsTable),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("create attempt %s: %w", a.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create attempt %s: %w", a.ID, err)
	}
	return nil
}

func (s *DynamoStore) GetAttempt(ctx context.Context, id string) (model.TestAttempt, error) {
	defer observe(driverDynamo, "get_attempt", time.Now())
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.attemptsTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.TestAttempt{}, fmt.Errorf("get attempt %s: %w", id, err)
	}
	if out.Item == nil {
		return model.TestAttempt{}, fmt.Errorf("get attempt %s: %w", id, ErrNotFound)
	}
	var item attemptItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return model.TestAttempt{}, fmt.Errorf("get attempt %s: unmarshal: %w", id, err)
	}
	return model.TestAttempt(item), nil
}

// updateInput renders p as a conditional UpdateItem on id.
func (s *DynamoStore) updateInput(id string, p *model.AttemptPatch) (*dynamodb.UpdateItemInput, error) {
	names := map[string]string{"#id": "id"}
	values := map[string]types.AttributeValue{}
	var sets []string

	add := func(attr string, v any) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", attr, err)
		}
		names["#"+attr] = attr
		values[":"+attr] = av
		sets = append(sets, "#"+attr+" = :"+attr)
		return nil
	}

	fields := []struct {
		attr string
		set  bool
		val  func() any
	}{
		{"status", p.Status != nil, func() any { return *p.Status }},
		{"result", p.Result != nil, func() any { return *p.Result }},
		{"annotatedVideoUrl", p.AnnotatedVideoURL != nil, func() any { return *p.AnnotatedVideoURL }},
		{"score", p.Score != nil, func() any { return *p.Score }},
		{"remarks", p.Remarks != nil, func() any { return *p.Remarks }},
		{"assessedBy", p.AssessedBy != nil, func() any { return *p.AssessedBy }},
		{"assessedAt", p.AssessedAt != nil, func() any { return *p.AssessedAt }},
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := add(f.attr, f.val()); err != nil {
			return nil, err
		}
	}

	cond := "attribute_exists(#id)"
	if len(p.IfStatus) > 0 {
		names["#cur"] = "status"
		placeholders := make([]string, len(p.IfStatus))
		for i, st := range p.IfStatus {
			ph := ":if" + strconv.Itoa(i)
			placeholders[i] = ph
			values[ph] = &types.AttributeValueMemberS{Value: string(st)}
		}
		cond += " AND #cur IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if p.IfResultUnset {
		names["#result"] = "result"
		cond += " AND attribute_not_exists(#result)"
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.attemptsTable),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}, nil
}

func (s *DynamoStore) PatchAttempt(ctx context.Context, id string, p model.AttemptPatch) (model.TestAttempt, error) {
	defer observe(driverDynamo, "patch_attempt", time.Now())
	if p.Empty() {
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			return model.TestAttempt{}, err
		}
		if !p.Holds(&a) {
			return model.TestAttempt{}, fmt.Errorf("patch attempt %s in status %s: %w", id, a.Status, ErrConflict)
		}
		return a, nil
	}

	in, err := s.updateInput(id, &p)
	if err != nil {
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s: %w", id, err)
	}
	out, err := s.client.UpdateItem(ctx, in)
	if err != nil {
		if isConditionFailed(err) {
			// Either the item is gone or the status guard failed.
			current, getErr := s.GetAttempt(ctx, id)
			if getErr != nil {
				return model.TestAttempt{}, getErr
			}
			return model.TestAttempt{}, fmt.Errorf("patch attempt %s in status %s: %w", id, current.Status, ErrConflict)
		}
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s: %w", id, err)
	}

	var item attemptItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s: unmarshal: %w", id, err)
	}
	return model.TestAttempt(item), nil
}

// scanFilter renders the server-side filter for q.
func scanFilter(q *Query) (*string, map[string]string, map[string]types.AttributeValue) {
	var parts []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if q.UserID != "" {
		names["#uid"] = "userId"
		values[":uid"] = &types.AttributeValueMemberS{Value: q.UserID}
		parts = append(parts, "#uid = :uid")
	}
	if len(q.Statuses) > 0 {
		names["#st"] = "status"
		placeholders := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			ph := ":st" + strconv.Itoa(i)
			placeholders[i] = ph
			values[ph] = &types.AttributeValueMemberS{Value: string(st)}
		}
		parts = append(parts, "#st IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(parts) == 0 {
		return nil, nil, nil
	}
	return aws.String(strings.Join(parts, " AND ")), names, values
}

func (s *DynamoStore) ListAttempts(ctx context.Context, q Query) ([]model.TestAttempt, error) {
	defer observe(driverDynamo, "list_attempts", time.Now())
	filter, names, values := scanFilter(&q)
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.attemptsTable),
		FilterExpression:          filter,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})

	var out []model.TestAttempt
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		var items []attemptItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("list attempts: unmarshal: %w", err)
		}
		for _, it := range items {
			a := model.TestAttempt(it)
			if q.matches(&a) {
				out = append(out, a)
			}
		}
	}
	sortAttempts(out, &q)
	return applyLimit(out, &q), nil
}

func (s *DynamoStore) DeleteAttempt(ctx context.Context, id string) error {
	defer observe(driverDynamo, "delete_attempt", time.Now())
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.attemptsTable),
		Key:                      idKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("delete attempt %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("delete attempt %s: %w", id, err)
	}
	return nil
}

func (s *DynamoStore) PutAthlete(ctx context.Context, a model.AthleteProfile) error {
	defer observe(driverDynamo, "put_athlete", time.Now())
	if a.ID == "" {
		return fmt.Errorf("put athlete: %w: empty id", ErrInvalidRecord)
	}
	item, err := attributevalue.MarshalMap(athleteItem(a))
	if err != nil {
		return fmt.Errorf("put athlete %s: marshal: %w", a.ID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.athletesTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put athlete %s: %w", a.ID, err)
	}
	return nil
}

func (s *DynamoStore) ListAthletes(ctx context.Context) ([]model.AthleteProfile, error) {
	defer observe(driverDynamo, "list_athletes", time.Now())
	return s.scanAthletes(ctx, nil)
}

// FindAthletes scans the athletes table once and keeps the matches.
func (s *DynamoStore) FindAthletes(ctx context.Context, userIDs []string) ([]model.AthleteProfile, error) {
	defer observe(driverDynamo, "find_athletes", time.Now())
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.scanAthletes(ctx, func(a *model.AthleteProfile) bool {
		return slices.Contains(userIDs, a.ID) || (a.ClerkID != "" && slices.Contains(userIDs, a.ClerkID))
	})
}

func (s *DynamoStore) scanAthletes(ctx context.Context, keep func(*model.AthleteProfile) bool) ([]model.AthleteProfile, error) {
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.athletesTable)})
	var out []model.AthleteProfile
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan athletes: %w", err)
		}
		var items []athleteItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("scan athletes: unmarshal: %w", err)
		}
		for _, it := range items {
			a := model.AthleteProfile(it)
			if keep == nil || keep(&a) {
				out = append(out, a)
			}
		}
	}
	sortAthletes(out)
	return out, nil
}

func (s *DynamoStore) CountAthletes(ctx context.Context) (int, error) {
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.athletesTable),
		Select:    types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count athletes: %w", err)
		}
		total += int(page.Count)
	}
	return total, nil
}
