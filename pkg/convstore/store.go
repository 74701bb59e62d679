// Package convstore keeps the client-side view of conversations: one
// ordered, deduplicated timeline per conversation, merged from paginated
// history, optimistic local inserts and realtime events.
package convstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

const DefaultPageSize = 30

type Kind string

const (
	DirectConversation Kind = "dm"
	RoomConversation   Kind = "room"
)

// Conversation identifies a timeline: a DM counterparty or a room.
type Conversation struct {
	Kind Kind
	ID   string
}

// Message is the client-side shape shared by both message variants.
type Message struct {
	ID         string
	TempID     string
	SenderID   string
	Content    string
	CreatedAt  time.Time
	Reactions  []Reaction
	Optimistic bool
}

type Reaction struct {
	ID     string
	UserID string
	Emoji  string
}

// Fetcher loads one newest-first page of history, typically from the REST
// endpoints.
type Fetcher interface {
	FetchOlder(ctx context.Context, conv Conversation, skip, take int) ([]Message, error)
}

// Summary is one inbox row.
type Summary struct {
	Conversation Conversation
	LastContent  string
	LastAt       time.Time
	Unseen       int
}

type timeline struct {
	// confirmed messages sorted by CreatedAt ascending with stable arrival
	// tiebreak; optimistic entries always at the tail.
	messages []Message
	unseen   int
}

type Store struct {
	fetcher Fetcher
	take    int

	mu       sync.Mutex
	convs    map[Conversation]*timeline
	focused  Conversation
	hasFocus bool
}

func New(fetcher Fetcher, take int) *Store {
	if take <= 0 {
		take = DefaultPageSize
	}
	return &Store{
		fetcher: fetcher,
		take:    take,
		convs:   make(map[Conversation]*timeline),
	}
}

func (s *Store) timelineFor(conv Conversation) *timeline {
	tl, ok := s.convs[conv]
	if !ok {
		tl = &timeline{}
		s.convs[conv] = tl
	}
	return tl
}

// LoadOlder fetches one page of history at the given offset and prepends
// it. It returns the number of fetched records; fewer than the page size
// means the history is exhausted (there is no explicit has-more flag).
func (s *Store) LoadOlder(ctx context.Context, conv Conversation, offset int) (int, error) {
	page, err := s.fetcher.FetchOlder(ctx, conv, offset, s.take)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	seen := make(map[string]struct{}, len(tl.messages))
	for _, m := range tl.messages {
		if m.ID != "" {
			seen[m.ID] = struct{}{}
		}
	}

	// Page arrives newest-first; reverse to chronological before prepending.
	older := make([]Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		if _, ok := seen[page[i].ID]; ok {
			continue
		}
		older = append(older, page[i])
	}

	tl.messages = append(older, tl.messages...)
	return len(page), nil
}

// Receive merges one inbound realtime message at its timestamp position.
// Duplicates by id are dropped; the unseen counter grows while the
// conversation is not focused.
func (s *Store) Receive(conv Conversation, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	for _, m := range tl.messages {
		if m.ID != "" && m.ID == msg.ID {
			return
		}
	}

	tl.insert(msg)

	if !s.hasFocus || s.focused != conv {
		tl.unseen++
	}
}

// insert places a confirmed message before the optimistic tail, after every
// confirmed entry with an equal or earlier timestamp.
func (tl *timeline) insert(msg Message) {
	pos := len(tl.messages)
	for i, m := range tl.messages {
		if m.Optimistic || m.CreatedAt.After(msg.CreatedAt) {
			pos = i
			break
		}
	}

	tl.messages = append(tl.messages, Message{})
	copy(tl.messages[pos+1:], tl.messages[pos:])
	tl.messages[pos] = msg
}

// AddOptimistic appends a locally authored placeholder shown until the
// server confirmation arrives.
func (s *Store) AddOptimistic(conv Conversation, tempID, senderID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	tl.messages = append(tl.messages, Message{
		TempID:     tempID,
		SenderID:   senderID,
		Content:    content,
		CreatedAt:  time.Now(),
		Optimistic: true,
	})
}

// MergeOptimistic replaces the placeholder matching tempID with the
// confirmed record, keeping its position. Without a matching placeholder
// (e.g. after a reload) the confirmed message is merged as new.
func (s *Store) MergeOptimistic(conv Conversation, tempID string, confirmed Message) {
	s.mu.Lock()

	tl := s.timelineFor(conv)
	for i, m := range tl.messages {
		if m.Optimistic && m.TempID == tempID {
			confirmed.Optimistic = false
			tl.messages[i] = confirmed
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()

	s.Receive(conv, confirmed)
}

// ApplyReactionUpdate adds or removes one reaction on the matching message.
// Re-applying the same update is a no-op.
func (s *Store) ApplyReactionUpdate(conv Conversation, messageID, action string, reaction Reaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	for i, m := range tl.messages {
		if m.ID != messageID {
			continue
		}

		switch action {
		case "added":
			for _, r := range m.Reactions {
				if r.UserID == reaction.UserID && r.Emoji == reaction.Emoji {
					return
				}
			}
			tl.messages[i].Reactions = append(tl.messages[i].Reactions, reaction)

		case "removed":
			for j, r := range m.Reactions {
				if r.UserID == reaction.UserID && r.Emoji == reaction.Emoji {
					tl.messages[i].Reactions = append(m.Reactions[:j], m.Reactions[j+1:]...)
					return
				}
			}
		}
		return
	}
}

// ApplyDeletion removes the message from the timeline; idempotent.
func (s *Store) ApplyDeletion(conv Conversation, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	for i, m := range tl.messages {
		if m.ID == messageID {
			tl.messages = append(tl.messages[:i], tl.messages[i+1:]...)
			return
		}
	}
}

// Select focuses a conversation and clears its unseen counter.
func (s *Store) Select(conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.focused = conv
	s.hasFocus = true
	s.timelineFor(conv).unseen = 0
}

// Messages returns a copy of the conversation's timeline.
func (s *Store) Messages(conv Conversation) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineFor(conv)
	out := make([]Message, len(tl.messages))
	copy(out, tl.messages)
	return out
}

func (s *Store) Unseen(conv Conversation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelineFor(conv).unseen
}

// Conversations lists inbox rows ordered by last activity, newest first.
func (s *Store) Conversations() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]Summary, 0, len(s.convs))
	for conv, tl := range s.convs {
		summary := Summary{Conversation: conv, Unseen: tl.unseen}
		if n := len(tl.messages); n > 0 {
			last := tl.messages[n-1]
			summary.LastContent = last.Content
			summary.LastAt = last.CreatedAt
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastAt.After(summaries[j].LastAt)
	})
	return summaries
}
