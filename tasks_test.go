package famcal

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotesCodecRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		notes string
		meta  map[string]string
	}{
		{
			name:  "notes with assignee",
			notes: "pick up the cake before 5pm",
			meta:  map[string]string{MetaAssignee: "dana"},
		},
		{
			name:  "empty notes",
			notes: "",
			meta:  map[string]string{MetaAssignee: "sam"},
		},
		{
			name:  "multiline notes",
			notes: "shopping list:\n- milk\n- bread",
			meta:  map[string]string{MetaAssignee: "dana", "priority": "high"},
		},
		{
			name:  "notes with equals signs",
			notes: "wifi password = hunter2",
			meta:  map[string]string{MetaAssignee: "alex"},
		},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded := encodeNotes(tt.notes, tt.meta)
			notes, meta := decodeNotes(encoded)

			if diff := cmp.Diff(notes, tt.notes); diff != "" {
				t.Errorf("decodeNotes() notes mismatch (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(meta, tt.meta); diff != "" {
				t.Errorf("decodeNotes() meta mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestEncodeNotesNoMetaIsIdentity(t *testing.T) {
	t.Parallel()

	if got := encodeNotes("plain notes", nil); got != "plain notes" {
		t.Errorf("encodeNotes() = %q, want unchanged notes", got)
	}
	notes, meta := decodeNotes("plain notes")
	if notes != "plain notes" || meta != nil {
		t.Errorf("decodeNotes() = (%q, %v), want unchanged notes and nil meta", notes, meta)
	}
}

func TestDecodeNotesMalformedBlockPassesThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "header without footer", raw: "notes\n\n" + metaHeader + "\nassignee=dana"},
		{name: "line without separator", raw: metaHeader + "\nnonsense\n" + metaFooter},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			notes, meta := decodeNotes(tt.raw)
			if notes != tt.raw || meta != nil {
				t.Errorf("decodeNotes(%q) = (%q, %v), want raw pass-through", tt.raw, notes, meta)
			}
		})
	}
}

func TestTaskBoardAddAssignComplete(t *testing.T) {
	t.Parallel()

	store := newFakeTaskStore()
	board := newTestTaskBoard(store)
	ctx := context.Background()

	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	created, err := board.AddTask(ctx, "buy birthday present", "something dinosaur themed", due, "dana")
	require.NoError(t, err)
	assert.Equal(t, TaskNeedsAction, created.Status)
	assert.Equal(t, "dana", created.Meta[MetaAssignee])

	reassigned, err := board.Assign(ctx, created, "sam")
	require.NoError(t, err)
	assert.Equal(t, "sam", reassigned.Meta[MetaAssignee])

	done, err := board.Complete(ctx, reassigned)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, done.Status)

	reopened, err := board.Reopen(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, TaskNeedsAction, reopened.Status)
}

func TestTaskBoardRejectsEmptyTitle(t *testing.T) {
	t.Parallel()

	board := newTestTaskBoard(newFakeTaskStore())
	_, err := board.AddTask(context.Background(), "   ", "", time.Time{}, "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTaskBoardTasksForFiltersByAssignee(t *testing.T) {
	t.Parallel()

	store := newFakeTaskStore()
	board := newTestTaskBoard(store)
	ctx := context.Background()

	_, err := board.AddTask(ctx, "walk the dog", "", time.Time{}, "dana")
	require.NoError(t, err)
	_, err = board.AddTask(ctx, "empty dishwasher", "", time.Time{}, "sam")
	require.NoError(t, err)
	_, err = board.AddTask(ctx, "unassigned chore", "", time.Time{}, "")
	require.NoError(t, err)

	tasks, err := board.TasksFor(ctx, "dana")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "walk the dog", tasks[0].Title)
}

func TestTaskBoardTasksSortsOpenFirstThenDue(t *testing.T) {
	t.Parallel()

	store := newFakeTaskStore()
	board := newTestTaskBoard(store)
	ctx := context.Background()

	late, err := board.AddTask(ctx, "late", "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	_, err = board.AddTask(ctx, "early", "", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	_, err = board.Complete(ctx, late)
	require.NoError(t, err)

	tasks, err := board.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "early", tasks[0].Title)
	assert.Equal(t, TaskCompleted, tasks[1].Status)
}
