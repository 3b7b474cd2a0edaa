package sns

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/domain/entity"
)

// mockSNSClient implements SNSPublisher for testing.
type mockSNSClient struct {
	publishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *mockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{
		MessageId: aws.String("test-message-id"),
	}, nil
}

const (
	positionsARN    = "arn:aws:sns:us-east-1:123456789:synth-positions"
	liquidationsARN = "arn:aws:sns:us-east-1:123456789:synth-liquidations"
)

var (
	testUser  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAsset = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func testTopics() TopicARNs {
	return TopicARNs{Positions: positionsARN, Liquidations: liquidationsARN}
}

func newTestSink(t *testing.T, client SNSPublisher, cfg Config) *EventSink {
	t.Helper()
	if cfg.Topics == (TopicARNs{}) {
		cfg.Topics = testTopics()
	}
	sink, err := NewEventSink(client, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sink
}

func depositEvent() entity.DepositEvent {
	return entity.DepositEvent{
		User:   testUser,
		Asset:  testAsset,
		Amount: big.NewInt(1e18),
		At:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewEventSink_RequiresClient(t *testing.T) {
	_, err := NewEventSink(nil, Config{Topics: testTopics()})
	if err == nil {
		t.Error("expected error for nil client")
	}
	if err.Error() != "sns client is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewEventSink_RequiresTopicARNs(t *testing.T) {
	tests := []struct {
		name        string
		topics      TopicARNs
		errContains string
	}{
		{"missing positions", TopicARNs{Liquidations: liquidationsARN}, "positions topic"},
		{"missing liquidations", TopicARNs{Positions: positionsARN}, "liquidations topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEventSink(&mockSNSClient{}, Config{Topics: tt.topics})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestNewEventSink_AppliesDefaults(t *testing.T) {
	sink := newTestSink(t, &mockSNSClient{}, Config{})

	if sink.config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", sink.config.MaxRetries)
	}
	if sink.config.InitialBackoff != 100*time.Millisecond {
		t.Errorf("expected InitialBackoff=100ms, got %v", sink.config.InitialBackoff)
	}
	if sink.config.MaxBackoff != 5*time.Second {
		t.Errorf("expected MaxBackoff=5s, got %v", sink.config.MaxBackoff)
	}
	if sink.config.BackoffFactor != 2.0 {
		t.Errorf("expected BackoffFactor=2.0, got %v", sink.config.BackoffFactor)
	}
}

func TestPublish_Success(t *testing.T) {
	client := &mockSNSClient{}
	sink := newTestSink(t, client, Config{})

	if err := sink.Publish(context.Background(), depositEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.calls) != 1 {
		t.Fatalf("expected 1 publish call, got %d", len(client.calls))
	}

	input := client.calls[0]
	if aws.ToString(input.TopicArn) != positionsARN {
		t.Errorf("topic = %s, want %s", aws.ToString(input.TopicArn), positionsARN)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(input.Message)), &decoded); err != nil {
		t.Fatalf("message is not valid JSON: %v", err)
	}
	if decoded["user"] != strings.ToLower(testUser.Hex()) && decoded["user"] != testUser.Hex() {
		t.Errorf("message user = %v", decoded["user"])
	}

	attrs := input.MessageAttributes
	if got := aws.ToString(attrs["eventType"].StringValue); got != "Deposit" {
		t.Errorf("eventType attribute = %s, want Deposit", got)
	}
	if got := aws.ToString(attrs["user"].StringValue); got != testUser.Hex() {
		t.Errorf("user attribute = %s, want %s", got, testUser.Hex())
	}
}

func TestPublish_RoutesLiquidationEvents(t *testing.T) {
	client := &mockSNSClient{}
	sink := newTestSink(t, client, Config{})

	event := entity.LiquidationEvent{
		User:               testUser,
		Liquidator:         common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Asset:              testAsset,
		DebtCovered:        big.NewInt(4000),
		CollateralSeized:   big.NewInt(55),
		EndingHealthFactor: big.NewInt(1e18),
		At:                 time.Now(),
	}

	if err := sink.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := aws.ToString(client.calls[0].TopicArn); got != liquidationsARN {
		t.Errorf("topic = %s, want %s", got, liquidationsARN)
	}

	opportunity := entity.LiquidationOpportunityEvent{
		User:         testUser,
		HealthFactor: big.NewInt(8e17),
		Debt:         big.NewInt(4000),
		At:           time.Now(),
	}
	if err := sink.Publish(context.Background(), opportunity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(client.calls[1].TopicArn); got != liquidationsARN {
		t.Errorf("topic = %s, want %s", got, liquidationsARN)
	}
}

func TestPublish_RetryOnThrottling(t *testing.T) {
	attempts := 0
	client := &mockSNSClient{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			attempts++
			if attempts < 3 {
				return nil, &types.ThrottledException{Message: aws.String("throttled")}
			}
			return &sns.PublishOutput{MessageId: aws.String("ok")}, nil
		},
	}

	sink := newTestSink(t, client, Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})

	if err := sink.Publish(context.Background(), depositEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPublish_RetriesExhausted(t *testing.T) {
	client := &mockSNSClient{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, &types.InternalErrorException{Message: aws.String("internal error")}
		},
	}

	sink := newTestSink(t, client, Config{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})

	err := sink.Publish(context.Background(), depositEvent())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 attempts (1 initial + 2 retries), got %d", len(client.calls))
	}
}

func TestPublish_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockSNSClient{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			cancel()
			return nil, &types.ThrottledException{Message: aws.String("throttled")}
		},
	}

	sink := newTestSink(t, client, Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Second,
	})

	err := sink.Publish(ctx, depositEvent())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestPublish_AfterClose(t *testing.T) {
	client := &mockSNSClient{}
	sink := newTestSink(t, client, Config{})

	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := sink.Publish(context.Background(), depositEvent())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no publish calls, got %d", len(client.calls))
	}
}

func TestClose_Idempotent(t *testing.T) {
	sink := newTestSink(t, &mockSNSClient{}, Config{})
	if err := sink.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"throttled", &types.ThrottledException{}, true},
		{"internal error", &types.InternalErrorException{}, true},
		{"kms throttling", &types.KMSThrottlingException{}, true},
		{"unknown error", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
