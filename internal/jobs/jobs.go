// Package jobs defines the typed payloads carried by the pipeline queues.
// Every payload travels in an envelope tagged with its kind and is decoded
// exhaustively; an unknown kind can never be processed and fails permanently.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/npm-sync/internal/queue"
)

// Kind discriminates job payloads
type Kind string

// Known job kinds
const (
	KindSync         Kind = "sync"
	KindBulkSync     Kind = "bulk-sync"
	KindBackfillTick Kind = "backfill-tick"
	KindChat         Kind = "chat"
	KindEmail        Kind = "email"
)

// MaxBulkPackages bounds the package names carried by one BulkSyncJob
const MaxBulkPackages = 50

// ErrUnknownKind is returned when decoding an envelope with an unknown kind
var ErrUnknownKind = errors.New("unknown job kind")

// Payload is implemented by every job type
type Payload interface {
	Kind() Kind
	// DedupKey identifies the job while it is unfinished
	DedupKey() string
}

// SyncJob syncs one package after a change feed event
type SyncJob struct {
	PackageName   string `json:"packageName"`
	SequenceToken string `json:"sequenceToken"`
	Deleted       bool   `json:"deleted"`
}

// Kind implements Payload
func (SyncJob) Kind() Kind { return KindSync }

// DedupKey implements Payload
func (j SyncJob) DedupKey() string {
	return fmt.Sprintf("sync:%s:%s", j.PackageName, j.SequenceToken)
}

// BulkSyncJob syncs a chunk of backfill candidates
type BulkSyncJob struct {
	PackageNames []string `json:"packageNames"`
	// Phase is the backfill run that produced the chunk
	Phase  *int `json:"phase,omitempty"`
	Offset int  `json:"offset"`
}

// Kind implements Payload
func (BulkSyncJob) Kind() Kind { return KindBulkSync }

// DedupKey implements Payload
func (j BulkSyncJob) DedupKey() string {
	phase := "none"
	if j.Phase != nil {
		phase = strconv.Itoa(*j.Phase)
	}
	return fmt.Sprintf("bulk:%s:%d", phase, j.Offset)
}

// BackfillTickJob advances the backfill by one batch starting at Offset
type BackfillTickJob struct {
	Offset int  `json:"offset"`
	Phase  int  `json:"phase"`
	Resume bool `json:"resume,omitempty"`
}

// Kind implements Payload
func (BackfillTickJob) Kind() Kind { return KindBackfillTick }

// DedupKey implements Payload. A resumed tick uses its own key so it is not
// swallowed by a tick for the same offset that is still waiting to run.
func (j BackfillTickJob) DedupKey() string {
	key := fmt.Sprintf("backfill-tick:%d:%d", j.Phase, j.Offset)
	if j.Resume {
		key += ":resume"
	}
	return key
}

// ChatJob delivers one message to a user's chat integration
type ChatJob struct {
	UserID     string            `json:"userId"`
	WebhookURL string            `json:"webhookUrl"`
	Template   string            `json:"template"`
	Props      map[string]string `json:"props"`
	// Key is the delivery key, chat:{userId}:{package}:{version}
	Key string `json:"key"`
}

// Kind implements Payload
func (ChatJob) Kind() Kind { return KindChat }

// DedupKey implements Payload
func (j ChatJob) DedupKey() string { return j.Key }

// EmailJob delivers one templated email
type EmailJob struct {
	To       string            `json:"to"`
	UserID   string            `json:"userId"`
	Template string            `json:"template"`
	Props    map[string]string `json:"props"`
	// Key is email:{userId}:{package}:{version} or release:{userId}:{releaseId}
	Key string `json:"key"`
}

// Kind implements Payload
func (EmailJob) Kind() Kind { return KindEmail }

// DedupKey implements Payload
func (j EmailJob) DedupKey() string { return j.Key }

// ChatKey builds the delivery key of a chat notification
func ChatKey(userID, packageName, version string) string {
	return fmt.Sprintf("chat:%s:%s:%s", userID, packageName, version)
}

// EmailKey builds the delivery key of an update email
func EmailKey(userID, packageName, version string) string {
	return fmt.Sprintf("email:%s:%s:%s", userID, packageName, version)
}

// ReleaseKey builds the delivery key of a release launch email
func ReleaseKey(userID, releaseID string) string {
	return fmt.Sprintf("release:%s:%s", userID, releaseID)
}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps p in its tagged envelope
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s job: %w", p.Kind(), err)
	}
	return json.Marshal(envelope{Kind: p.Kind(), Data: data})
}

// Decode unwraps an envelope into its concrete payload
func Decode(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job envelope: %w", err)
	}

	switch env.Kind {
	case KindSync:
		return decodeAs[SyncJob](env)
	case KindBulkSync:
		return decodeAs[BulkSyncJob](env)
	case KindBackfillTick:
		return decodeAs[BackfillTickJob](env)
	case KindChat:
		return decodeAs[ChatJob](env)
	case KindEmail:
		return decodeAs[EmailJob](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func decodeAs[T Payload](env envelope) (Payload, error) {
	var p T
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s job: %w", env.Kind, err)
	}
	return p, nil
}

// Options returns enqueue options for p with its dedup key filled in
func Options(p Payload, opts queue.EnqueueOptions) queue.EnqueueOptions {
	if opts.Key == "" {
		opts.Key = p.DedupKey()
	}
	return opts
}

// Enqueue encodes p and enqueues it on queueName under its dedup key
func Enqueue(
	ctx context.Context, q queue.Enqueuer, queueName string, p Payload, opts queue.EnqueueOptions,
) (queue.EnqueueResult, error) {
	raw, err := Encode(p)
	if err != nil {
		return queue.Accepted, err
	}
	return q.Enqueue(ctx, queueName, raw, Options(p, opts))
}

// Handle adapts a typed handler to a queue.Handler. Payloads that fail to
// decode, or decode to another kind, fail permanently.
func Handle[T Payload](fn func(ctx context.Context, p T) error) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		p, err := Decode(job.Payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		typed, ok := p.(T)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected %s job on queue %s", p.Kind(), job.Queue))
		}
		return fn(ctx, typed)
	}
}
