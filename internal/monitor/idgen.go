package monitor

import (
	"context"
	"fmt"

	"github.com/youthsafe/guardian/internal/models"
)

// Allocator mints the next surrogate identifier for one of the four entity
// types. The four counters are independent and each spans its whole table;
// the owner parameters are accepted for call-site compatibility but do not
// partition the counter.
type Allocator interface {
	NextChatbotID(ctx context.Context, platform string) (int, error)
	NextConversationID(ctx context.Context, childUserID int) (int, error)
	NextRiskyEventID(ctx context.Context, childUserID int) (int, error)
	NextMessageID(ctx context.Context, childUserID int) (int, error)
}

// ScanAllocator computes max(existing)+1 from a fresh scan of the table.
// Two concurrent allocations can hand out the same id; the write path
// compensates by retrying the insert with a fresh id on conflict.
type ScanAllocator struct {
	repo *Repo
}

func NewScanAllocator(repo *Repo) *ScanAllocator {
	return &ScanAllocator{repo: repo}
}

func (a *ScanAllocator) next(ctx context.Context, model any, column string) (int, error) {
	ids, err := a.repo.assignedIDs(ctx, model, column)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, id := range ids {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (a *ScanAllocator) NextChatbotID(ctx context.Context, platform string) (int, error) {
	_ = platform
	return a.next(ctx, &models.Chatbot{}, "chatbot_id")
}

func (a *ScanAllocator) NextConversationID(ctx context.Context, childUserID int) (int, error) {
	_ = childUserID
	return a.next(ctx, &models.Conversation{}, "conversation_id")
}

func (a *ScanAllocator) NextRiskyEventID(ctx context.Context, childUserID int) (int, error) {
	_ = childUserID
	return a.next(ctx, &models.RiskyEvent{}, "risky_event_id")
}

func (a *ScanAllocator) NextMessageID(ctx context.Context, childUserID int) (int, error) {
	_ = childUserID
	return a.next(ctx, &models.Message{}, "message_id")
}

// Sequencer is the atomic named-counter surface the sequence allocator needs;
// redisstore.Store satisfies it.
type Sequencer interface {
	NextSeq(ctx context.Context, name string) (int64, error)
	AdvanceSeq(ctx context.Context, name string, floor int64) (int64, error)
}

// SequenceAllocator draws ids from redis counters, which stay monotonic under
// concurrent allocation. A counter seen for the first time is advanced past
// the rows already in the table before its value is handed out.
type SequenceAllocator struct {
	seq  Sequencer
	scan *ScanAllocator
}

func NewSequenceAllocator(seq Sequencer, scan *ScanAllocator) *SequenceAllocator {
	return &SequenceAllocator{seq: seq, scan: scan}
}

func (a *SequenceAllocator) next(ctx context.Context, name string, seed func(context.Context) (int, error)) (int, error) {
	n, err := a.seq.NextSeq(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if n > 1 {
		return int(n), nil
	}

	// fresh counter: catch up with whatever the table already holds
	next, err := seed(ctx)
	if err != nil {
		return 0, err
	}
	if next <= 1 {
		return int(n), nil
	}
	m, err := a.seq.AdvanceSeq(ctx, name, int64(next-1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return int(m), nil
}

func (a *SequenceAllocator) NextChatbotID(ctx context.Context, platform string) (int, error) {
	return a.next(ctx, "chatbots", func(ctx context.Context) (int, error) {
		return a.scan.NextChatbotID(ctx, platform)
	})
}

func (a *SequenceAllocator) NextConversationID(ctx context.Context, childUserID int) (int, error) {
	return a.next(ctx, "conversations", func(ctx context.Context) (int, error) {
		return a.scan.NextConversationID(ctx, childUserID)
	})
}

func (a *SequenceAllocator) NextRiskyEventID(ctx context.Context, childUserID int) (int, error) {
	return a.next(ctx, "risky_events", func(ctx context.Context) (int, error) {
		return a.scan.NextRiskyEventID(ctx, childUserID)
	})
}

func (a *SequenceAllocator) NextMessageID(ctx context.Context, childUserID int) (int, error) {
	return a.next(ctx, "messages", func(ctx context.Context) (int, error) {
		return a.scan.NextMessageID(ctx, childUserID)
	})
}
