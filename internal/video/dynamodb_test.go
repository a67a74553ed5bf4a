package video

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo keeps items in memory and pages scans one item at a time.
type fakeDynamo struct {
	items   []map[string]types.AttributeValue
	condErr bool
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.condErr {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	want := in.Key["id"].(*types.AttributeValueMemberS).Value
	for _, it := range f.items {
		if it["id"].(*types.AttributeValueMemberS).Value == want {
			return &dynamodb.GetItemOutput{Item: it}, nil
		}
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	idx := 0
	if in.ExclusiveStartKey != nil {
		last := in.ExclusiveStartKey["id"].(*types.AttributeValueMemberS).Value
		for i, it := range f.items {
			if it["id"].(*types.AttributeValueMemberS).Value == last {
				idx = i + 1
			}
		}
	}
	if idx >= len(f.items) {
		return &dynamodb.ScanOutput{}, nil
	}
	out := &dynamodb.ScanOutput{Items: f.items[idx : idx+1]}
	if idx+1 < len(f.items) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": f.items[idx]["id"]}
	}
	return out, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.condErr {
		return nil, &types.ConditionalCheckFailedException{}
	}
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"views": &types.AttributeValueMemberN{Value: "7"},
	}}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.condErr {
		return nil, &types.ConditionalCheckFailedException{}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoItemRoundTrip(t *testing.T) {
	rec := sampleRecord("clip", "u1", time.UnixMilli(1_700_000_000_123).UTC())
	rec.ID = "v1"
	rec.Views = 4
	rec.UpdatedAt = rec.CreatedAt

	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		t.Fatalf("MarshalMap returned error: %v", err)
	}
	var item videoItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		t.Fatalf("UnmarshalMap returned error: %v", err)
	}
	got := item.record()

	if got.ID != rec.ID || got.Title != rec.Title || got.Owner != rec.Owner || got.Views != 4 {
		t.Fatalf("record mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("CreatedAt mismatch: got %s want %s", got.CreatedAt, rec.CreatedAt)
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != *rec.ThumbnailURL {
		t.Fatalf("thumbnail mismatch: %v", got.ThumbnailURL)
	}
}

func TestDynamoCreateReadList(t *testing.T) {
	client := &fakeDynamo{}
	s := newDynamoDBStore(client, "videos")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := sampleRecord("Old Pasta", "u1", base)
	mid := sampleRecord("Hidden", "u1", base.Add(time.Hour))
	mid.IsPublished = false
	newest := sampleRecord("New pasta", "u2", base.Add(2*time.Hour))

	for _, r := range []*Record{old, mid, newest} {
		if _, err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	got, err := s.Read(ctx, newest.ID)
	if err != nil || got == nil {
		t.Fatalf("Read returned %v, %v", got, err)
	}
	if got.Title != "New pasta" {
		t.Fatalf("title mismatch: got %q", got.Title)
	}

	missing, err := s.Read(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing id; got %v, %v", missing, err)
	}

	list, err := s.List(ctx, ListFilter{Query: "PASTA", PublishedOnly: true})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0].Title != "New pasta" || list[1].Title != "Old Pasta" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestDynamoConditionalFailures(t *testing.T) {
	client := &fakeDynamo{condErr: true}
	s := newDynamoDBStore(client, "videos")
	ctx := context.Background()

	if _, err := s.Create(ctx, sampleRecord("x", "u1", time.Now())); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if err := s.Delete(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.IncrementViews(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, &Record{ID: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	client.condErr = false
	views, err := s.IncrementViews(ctx, "x")
	if err != nil || views != 7 {
		t.Fatalf("IncrementViews = %d, %v; want 7, nil", views, err)
	}
}

func TestListFilterMatches(t *testing.T) {
	r := &Record{Title: "Go Tips", Description: "Channels", IsPublished: false, Owner: Owner{ID: "u1"}}

	tests := []struct {
		filter ListFilter
		want   bool
	}{
		{ListFilter{}, true},
		{ListFilter{PublishedOnly: true}, false},
		{ListFilter{OwnerID: "u2"}, false},
		{ListFilter{Query: "tips"}, true},
		{ListFilter{Query: "channels"}, true},
		{ListFilter{Query: "channels", TitleOnly: true}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Matches(r); got != tt.want {
			t.Fatalf("Matches(%+v) = %v, want %v", tt.filter, got, tt.want)
		}
	}
}
