package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"quadplan/domain"
	"quadplan/engine"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions *Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/healthz", healthz())
	e.GET("/api/state", getState(sessions, auth, logger))
	e.POST("/api/commands", postCommands(sessions, auth, deduper, logger), GzipRequestMiddleware())
	e.GET("/api/search", getSearch(sessions, auth))
	e.GET("/api/tags", getTags(sessions, auth))
	e.GET("/api/archive", getArchive(sessions, auth))
	e.GET("/api/reminders", getReminders(sessions, auth))
	e.GET("/api/stream", streamState(sessions, auth))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getState(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newStateRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		loadStart := time.Now()
		eng, loadErr := sessions.Acquire(ctx, userID)
		metrics.ObserveLoad(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("load")
			c.Logger().Error(loadErr)
			err = c.String(http.StatusInternalServerError, loadErr.Error())
			return err
		}

		snap := eng.Snapshot()
		metrics.SetBoardsReturned(len(snap.Boards))
		metrics.SetTasksReturned(len(snap.Tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, stateResponse{
			Boards:      snap.Boards,
			Tasks:       snap.Tasks,
			Preferences: snap.Preferences,
		})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postCommands(sessions *Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		cmds := make([]domain.Command, 0, 4)
		if err := dec.Decode(&cmds); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if len(cmds) == 0 {
			return c.JSON(http.StatusOK, postCommandResponse{})
		}

		keys := finalizeCommands(cmds)

		eng, err := sessions.Acquire(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to load state")
		}

		added := make([]bool, len(keys))
		for i := range added {
			added[i] = true
		}
		if deduper != nil {
			if res, derr := deduper.AddMany(ctx, userID, keys); derr == nil {
				added = res
			} else if logger != nil {
				// Dedupe is best effort; a redis outage must not block commands.
				logger.WithError(derr).Warn("idempotency check unavailable, processing all commands")
			}
		}

		results := make([]commandResult, len(cmds))
		applied := 0
		for i, cmd := range cmds {
			if !added[i] {
				results[i] = commandResult{IdempotencyKey: cmd.IdempotencyKey, Status: statusSkipped}
				continue
			}
			results[i] = applyCommand(eng, cmd)
			if results[i].Status == statusApplied {
				applied++
			}
		}

		if applied > 0 {
			sessions.Persist(userID)
		}

		return c.JSON(http.StatusOK, postCommandResponse{IdempotencyKeys: keys, Results: results})
	}
}

func getSearch(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng, err := acquireForRequest(c, sessions, auth)
		if eng == nil {
			return err
		}
		results := eng.Search(c.QueryParam("q"))
		if results == nil {
			results = []engine.SearchResult{}
		}
		return c.JSON(http.StatusOK, map[string][]engine.SearchResult{"results": results})
	}
}

func getTags(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng, err := acquireForRequest(c, sessions, auth)
		if eng == nil {
			return err
		}
		boardID := boardIDOrActive(c, eng)
		archived := parseBoolParam(c.QueryParam("archived"))
		tags := eng.DistinctTags(boardID, archived)
		if tags == nil {
			tags = []string{}
		}
		return c.JSON(http.StatusOK, map[string][]string{"tags": tags})
	}
}

func getArchive(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng, err := acquireForRequest(c, sessions, auth)
		if eng == nil {
			return err
		}
		boardID := boardIDOrActive(c, eng)
		tasks := eng.Archive(boardID, engine.ArchiveSort(c.QueryParam("sort")), c.QueryParam("tag"))
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return c.JSON(http.StatusOK, map[string][]domain.Task{"tasks": tasks})
	}
}

func getReminders(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng, err := acquireForRequest(c, sessions, auth)
		if eng == nil {
			return err
		}
		due := eng.PollReminders(time.Now())
		if due == nil {
			due = []domain.Task{}
		}
		return c.JSON(http.StatusOK, map[string][]domain.Task{"tasks": due})
	}
}

// acquireForRequest authenticates the request and loads its engine. On
// failure it writes the error response itself and returns a nil engine; the
// caller just propagates the returned error.
func acquireForRequest(c echo.Context, sessions *Sessions, auth Authenticator) (*engine.Engine, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
	if err != nil {
		return nil, c.String(http.StatusUnauthorized, err.Error())
	}
	eng, err := sessions.Acquire(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error(err)
		return nil, c.String(http.StatusInternalServerError, err.Error())
	}
	return eng, nil
}

func boardIDOrActive(c echo.Context, eng *engine.Engine) string {
	if boardID := strings.TrimSpace(c.QueryParam("boardId")); boardID != "" {
		return boardID
	}
	return eng.Snapshot().Preferences.ActiveBoardID
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// finalizeCommands stamps every command with an idempotency key and a
// strictly increasing timestamp, returning the keys in order.
func finalizeCommands(cmds []domain.Command) []string {
	keys := make([]string, len(cmds))
	for i := range cmds {
		if cmds[i].IdempotencyKey == "" {
			cmds[i].IdempotencyKey = uuid.NewString()
		}
		cmds[i].ID = cmds[i].IdempotencyKey
		cmds[i].Timestamp = nextTimestamp()
		keys[i] = cmds[i].IdempotencyKey
	}
	return keys
}
