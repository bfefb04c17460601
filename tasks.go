package famcal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// The remote task store has no custom fields, so structured metadata is
// carried in a marker block appended to the user-visible notes. The
// codec is reversible for any notes free of the marker lines:
// decodeNotes(encodeNotes(notes, meta)) == (notes, meta).
const (
	metaHeader = "-- famcal meta --"
	metaFooter = "-- end famcal meta --"
)

// encodeNotes appends the metadata block to the visible notes. Keys are
// emitted sorted so the encoding is deterministic. Keys and values must
// not contain newlines or the marker lines.
func encodeNotes(notes string, meta map[string]string) string {
	if len(meta) == 0 {
		return notes
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(notes)
	if notes != "" {
		b.WriteString("\n\n")
	}
	b.WriteString(metaHeader)
	b.WriteString("\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(meta[k])
		b.WriteString("\n")
	}
	b.WriteString(metaFooter)
	return b.String()
}

// decodeNotes splits raw remote notes back into visible notes and
// metadata. Raw notes without a well-formed marker block pass through
// unchanged with nil metadata.
func decodeNotes(raw string) (string, map[string]string) {
	start := strings.Index(raw, metaHeader)
	if start == -1 {
		return raw, nil
	}
	block := raw[start:]
	if !strings.HasSuffix(block, metaFooter) {
		return raw, nil
	}
	body := strings.TrimSuffix(strings.TrimPrefix(block, metaHeader), metaFooter)
	meta := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return raw, nil
		}
		meta[k] = v
	}
	notes := strings.TrimSuffix(raw[:start], "\n\n")
	return notes, meta
}

// TaskStore is the CRUD contract for the remote task list. The metadata
// codec is the adapter's concern; callers work with decoded Tasks.
type TaskStore interface {
	ListTasks(ctx context.Context, listID string) ([]Task, error)
	InsertTask(ctx context.Context, listID string, t Task) (Task, error)
	PatchTask(ctx context.Context, listID, taskID string, t Task) (Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error
}

// GoogleTaskStore implements TaskStore against the Google Tasks API.
type GoogleTaskStore struct {
	svc *tasks.Service
}

func NewGoogleTaskStore(ctx context.Context, client *http.Client) (*GoogleTaskStore, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	return &GoogleTaskStore{svc: svc}, nil
}

func (g *GoogleTaskStore) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var out []Task
	err := g.svc.Tasks.List(listID).ShowCompleted(true).Context(ctx).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, item := range page.Items {
				out = append(out, fromAPITask(listID, item))
			}
			return nil
		})
	if err != nil {
		return nil, wrapRemote("list tasks", listID, "", err)
	}
	return out, nil
}

func (g *GoogleTaskStore) InsertTask(ctx context.Context, listID string, t Task) (Task, error) {
	item, err := g.svc.Tasks.Insert(listID, toAPITask(t)).Context(ctx).Do()
	if err != nil {
		return Task{}, wrapRemote("insert task", listID, "", err)
	}
	return fromAPITask(listID, item), nil
}

func (g *GoogleTaskStore) PatchTask(ctx context.Context, listID, taskID string, t Task) (Task, error) {
	item, err := g.svc.Tasks.Patch(listID, taskID, toAPITask(t)).Context(ctx).Do()
	if err != nil {
		return Task{}, wrapRemote("patch task", listID, taskID, err)
	}
	return fromAPITask(listID, item), nil
}

func (g *GoogleTaskStore) DeleteTask(ctx context.Context, listID, taskID string) error {
	if err := g.svc.Tasks.Delete(listID, taskID).Context(ctx).Do(); err != nil {
		return wrapRemote("delete task", listID, taskID, err)
	}
	return nil
}

func fromAPITask(listID string, item *tasks.Task) Task {
	notes, meta := decodeNotes(item.Notes)
	t := Task{
		ListID: listID,
		ID:     item.Id,
		Title:  item.Title,
		Notes:  notes,
		Status: item.Status,
		Meta:   meta,
	}
	if item.Due != "" {
		if due, err := time.Parse(time.RFC3339, item.Due); err == nil {
			t.Due = due
		}
	}
	return t
}

func toAPITask(t Task) *tasks.Task {
	item := &tasks.Task{
		Title:  t.Title,
		Notes:  encodeNotes(t.Notes, t.Meta),
		Status: t.Status,
	}
	if !t.Due.IsZero() {
		item.Due = t.Due.UTC().Format(time.RFC3339)
	}
	return item
}

// TaskBoard is the task side of the family board: one shared remote list
// with per-person assignment carried as metadata.
type TaskBoard struct {
	store  TaskStore
	listID string
	log    zerolog.Logger
}

func NewTaskBoard(store TaskStore, listID string, log zerolog.Logger) *TaskBoard {
	return &TaskBoard{store: store, listID: listID, log: log}
}

// Tasks lists the board, open tasks first, then by due date.
func (b *TaskBoard) Tasks(ctx context.Context) ([]Task, error) {
	list, err := b.store.ListTasks(ctx, b.listID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Status != list[j].Status {
			return list[i].Status == TaskNeedsAction
		}
		return list[i].Due.Before(list[j].Due)
	})
	return list, nil
}

// TasksFor filters the board down to one family member's assignments.
func (b *TaskBoard) TasksFor(ctx context.Context, assignee string) ([]Task, error) {
	list, err := b.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range list {
		if t.Meta[MetaAssignee] == assignee {
			out = append(out, t)
		}
	}
	return out, nil
}

// AddTask creates a task, optionally due and assigned.
func (b *TaskBoard) AddTask(ctx context.Context, title, notes string, due time.Time, assignee string) (Task, error) {
	if strings.TrimSpace(title) == "" {
		return Task{}, validationf("task title must not be empty")
	}
	t := Task{
		Title:  title,
		Notes:  notes,
		Due:    due,
		Status: TaskNeedsAction,
	}
	if assignee != "" {
		t.Meta = map[string]string{MetaAssignee: assignee}
	}
	created, err := b.store.InsertTask(ctx, b.listID, t)
	if err != nil {
		return Task{}, fmt.Errorf("add task: %w", err)
	}
	b.log.Info().Str("task", created.ID).Str("assignee", assignee).Msg("task added")
	return created, nil
}

// Assign hands the task to a family member (or clears the assignment
// with an empty name).
func (b *TaskBoard) Assign(ctx context.Context, t Task, assignee string) (Task, error) {
	if t.Meta == nil {
		t.Meta = make(map[string]string)
	}
	if assignee == "" {
		delete(t.Meta, MetaAssignee)
	} else {
		t.Meta[MetaAssignee] = assignee
	}
	updated, err := b.store.PatchTask(ctx, b.listID, t.ID, t)
	if err != nil {
		return Task{}, fmt.Errorf("assign task: %w", err)
	}
	return updated, nil
}

// Complete marks the task done.
func (b *TaskBoard) Complete(ctx context.Context, t Task) (Task, error) {
	t.Status = TaskCompleted
	updated, err := b.store.PatchTask(ctx, b.listID, t.ID, t)
	if err != nil {
		return Task{}, fmt.Errorf("complete task: %w", err)
	}
	b.log.Info().Str("task", t.ID).Msg("task completed")
	return updated, nil
}

// Reopen puts a completed task back on the board.
func (b *TaskBoard) Reopen(ctx context.Context, t Task) (Task, error) {
	t.Status = TaskNeedsAction
	updated, err := b.store.PatchTask(ctx, b.listID, t.ID, t)
	if err != nil {
		return Task{}, fmt.Errorf("reopen task: %w", err)
	}
	return updated, nil
}

// DeleteTask removes the task from the board.
func (b *TaskBoard) DeleteTask(ctx context.Context, t Task) error {
	if err := b.store.DeleteTask(ctx, b.listID, t.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	b.log.Info().Str("task", t.ID).Msg("task deleted")
	return nil
}
