package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	log "github.com/sirupsen/logrus"

	"quadplan/domain"
)

// Storage persists per-user planner snapshots across three tables: boards,
// tasks and preferences, all partitioned by user scope.
type Storage struct {
	boardsTable *aztables.Client
	tasksTable  *aztables.Client
	prefsTable  *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardsTable, tasksTable, prefsTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boardsTable: svc.NewClient(boardsTable),
		tasksTable:  svc.NewClient(tasksTable),
		prefsTable:  svc.NewClient(prefsTable),
	}, nil
}

type boardEntity struct {
	aztables.Entity
	Name string `json:"Name"`
}

type taskEntity struct {
	aztables.Entity
	BoardID     string `json:"BoardID"`
	Quadrant    string `json:"Quadrant"`
	Title       string `json:"Title"`
	Notes       string `json:"Notes"`
	Order       int    `json:"Order"`
	Done        bool   `json:"Done"`
	CreatedAt   int64  `json:"CreatedAt"`
	CompletedAt int64  `json:"CompletedAt"`
	DueDate     string `json:"DueDate"`
	ReminderAt  int64  `json:"ReminderAt"`
	Tags        string `json:"Tags"`
	Recurrence  string `json:"Recurrence"`
}

type prefsEntity struct {
	aztables.Entity
	ActiveBoardID    string `json:"ActiveBoardID"`
	TasksPerQuadrant int    `json:"TasksPerQuadrant"`
	ShowDoneTasks    bool   `json:"ShowDoneTasks"`
}

func decodeBoardEntity(data []byte) (domain.Board, error) {
	var ent boardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Board{}, err
	}
	return domain.Board{ID: ent.RowKey, Name: ent.Name}, nil
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          ent.RowKey,
		BoardID:     ent.BoardID,
		Quadrant:    domain.Quadrant(ent.Quadrant),
		Title:       ent.Title,
		Notes:       ent.Notes,
		Order:       ent.Order,
		Done:        ent.Done,
		CreatedAt:   ent.CreatedAt,
		CompletedAt: ent.CompletedAt,
		DueDate:     ent.DueDate,
		ReminderAt:  ent.ReminderAt,
		Tags:        domain.ParseTags(ent.Tags),
		Recurrence:  domain.Recurrence(ent.Recurrence),
	}, nil
}

func decodePrefsEntity(data []byte) (domain.Preferences, error) {
	var ent prefsEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Preferences{}, err
	}
	return domain.Preferences{
		ActiveBoardID:    ent.ActiveBoardID,
		TasksPerQuadrant: ent.TasksPerQuadrant,
		ShowDoneTasks:    ent.ShowDoneTasks,
	}, nil
}

// LoadSnapshot reads the full persisted state of one scope. A malformed row
// is skipped with a warning rather than failing the load; a missing
// preferences row yields zero preferences. Transport failures propagate.
func (s *Storage) LoadSnapshot(ctx context.Context, scope string) (domain.Snapshot, error) {
	var snap domain.Snapshot

	boards, err := s.loadBoards(ctx, scope)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Boards = boards

	tasks, err := s.loadTasks(ctx, scope)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Tasks = tasks

	prefs, err := s.loadPreferences(ctx, scope)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Preferences = prefs

	return snap, nil
}

func (s *Storage) loadBoards(ctx context.Context, scope string) ([]domain.Board, error) {
	filter := "PartitionKey eq '" + scope + "'"
	pager := s.boardsTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			board, derr := decodeBoardEntity(raw)
			if derr != nil {
				log.WithError(derr).WithField("scope", scope).Warn("skipping malformed board row")
				continue
			}
			boards = append(boards, board)
		}
	}
	return boards, nil
}

func (s *Storage) loadTasks(ctx context.Context, scope string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + scope + "'"
	pager := s.tasksTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			task, derr := decodeTaskEntity(raw)
			if derr != nil {
				log.WithError(derr).WithField("scope", scope).Warn("skipping malformed task row")
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (s *Storage) loadPreferences(ctx context.Context, scope string) (domain.Preferences, error) {
	ent, err := s.prefsTable.GetEntity(ctx, scope, scope, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Preferences{}, nil
		}
		return domain.Preferences{}, err
	}
	prefs, derr := decodePrefsEntity(ent.Value)
	if derr != nil {
		log.WithError(derr).WithField("scope", scope).Warn("skipping malformed preferences row")
		return domain.Preferences{}, nil
	}
	return prefs, nil
}

// SaveSnapshot upserts every entity of the snapshot and deletes rows that no
// longer exist in it. Returns the first error encountered; the caller treats
// the write as best effort.
func (s *Storage) SaveSnapshot(ctx context.Context, scope string, snap domain.Snapshot) error {
	keepBoards := make(map[string]struct{}, len(snap.Boards))
	for _, board := range snap.Boards {
		keepBoards[board.ID] = struct{}{}
		ent := boardEntity{
			Entity: aztables.Entity{PartitionKey: scope, RowKey: board.ID},
			Name:   board.Name,
		}
		if err := s.upsert(ctx, s.boardsTable, ent); err != nil {
			return err
		}
	}

	keepTasks := make(map[string]struct{}, len(snap.Tasks))
	for _, task := range snap.Tasks {
		keepTasks[task.ID] = struct{}{}
		ent := taskEntity{
			Entity:      aztables.Entity{PartitionKey: scope, RowKey: task.ID},
			BoardID:     task.BoardID,
			Quadrant:    string(task.Quadrant),
			Title:       task.Title,
			Notes:       task.Notes,
			Order:       task.Order,
			Done:        task.Done,
			CreatedAt:   task.CreatedAt,
			CompletedAt: task.CompletedAt,
			DueDate:     task.DueDate,
			ReminderAt:  task.ReminderAt,
			Tags:        strings.Join(task.Tags, ","),
			Recurrence:  string(task.Recurrence),
		}
		if err := s.upsert(ctx, s.tasksTable, ent); err != nil {
			return err
		}
	}

	prefs := prefsEntity{
		Entity:           aztables.Entity{PartitionKey: scope, RowKey: scope},
		ActiveBoardID:    snap.Preferences.ActiveBoardID,
		TasksPerQuadrant: snap.Preferences.TasksPerQuadrant,
		ShowDoneTasks:    snap.Preferences.ShowDoneTasks,
	}
	if err := s.upsert(ctx, s.prefsTable, prefs); err != nil {
		return err
	}

	if err := s.deleteStale(ctx, s.boardsTable, scope, keepBoards); err != nil {
		return err
	}
	return s.deleteStale(ctx, s.tasksTable, scope, keepTasks)
}

func (s *Storage) upsert(ctx context.Context, table *aztables.Client, ent any) error {
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Storage) deleteStale(ctx context.Context, table *aztables.Client, scope string, keep map[string]struct{}) error {
	filter := "PartitionKey eq '" + scope + "'"
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range resp.Entities {
			var ent aztables.Entity
			if derr := json.Unmarshal(raw, &ent); derr != nil {
				continue
			}
			if _, ok := keep[ent.RowKey]; ok {
				continue
			}
			if _, derr := table.DeleteEntity(ctx, scope, ent.RowKey, nil); derr != nil && !isNotFound(derr) {
				return derr
			}
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
