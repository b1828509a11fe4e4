// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/playout-works/chansched/internal/scheduler"
	"github.com/playout-works/chansched/internal/store"
	"github.com/playout-works/chansched/pkg/mediaprobe"
)

const dateFmt = "2006-01-02"

// AssetRegistration is the request body for registering a library asset
// together with its primary file instance.
type AssetRegistration struct {
	ContentType       string   `json:"content_type" doc:"Content type code" example:"pkg"`
	ContentTitle      string   `json:"content_title" doc:"Human readable title"`
	DurationSeconds   float64  `json:"duration_seconds,omitempty" doc:"Probed from the media file when zero"`
	EngagementScore   *float64 `json:"engagement_score,omitempty" doc:"0-100 engagement score from analysis"`
	ShelfLifeScore    string   `json:"shelf_life_score,omitempty" example:"medium"`
	Theme             string   `json:"theme,omitempty"`
	MeetingDate       string   `json:"meeting_date,omitempty" doc:"Meeting date (YYYY-MM-DD) for mtg content"`
	FileName          string   `json:"file_name"`
	FilePath          string   `json:"file_path" doc:"Path to the primary media file"`
	FileSize          int64    `json:"file_size,omitempty"`
	EncodedDate       string   `json:"encoded_date,omitempty" doc:"RFC 3339; probed from the file when empty"`
	StorageLocation   string   `json:"storage_location,omitempty"`
	ContentExpiryDate string   `json:"content_expiry_date,omitempty" doc:"YYYY-MM-DD; defaults per content type"`
	GoLiveDate        string   `json:"go_live_date,omitempty" doc:"YYYY-MM-DD"`
	Featured          bool     `json:"featured,omitempty"`
}

type AssetCreateRequest struct {
	Body AssetRegistration
}

type AssetResponse struct {
	Body store.Asset
}

type AssetListResponse struct {
	Body struct {
		Assets []store.Asset `json:"assets"`
	}
}

type AvailabilityRequest struct {
	Id   string `path:"id" maxLength:"20" doc:"Asset ID"`
	Body struct {
		Available bool `json:"available"`
	}
}

type OkResponse struct {
	Body struct {
		Ok bool `json:"ok"`
	}
}

type GreetingListResponse struct {
	Body struct {
		Greetings []store.GreetingRotation `json:"greetings"`
	}
}

type BuildDailyRequest struct {
	Body struct {
		Date      string `json:"date" doc:"Air date (YYYY-MM-DD)" example:"2026-03-10"`
		Name      string `json:"name,omitempty" doc:"Schedule name; derived from the date when empty"`
		MaxErrors int    `json:"max_errors,omitempty" minimum:"1" doc:"Override for the consecutive-error bound"`
	}
}

type BuildWeeklyRequest struct {
	Body struct {
		StartDate string `json:"start_date" doc:"Week start (YYYY-MM-DD); corrected back to Sunday"`
		Name      string `json:"name,omitempty"`
	}
}

type BuildMonthlyRequest struct {
	Body struct {
		Year  int `json:"year" example:"2026"`
		Month int `json:"month" minimum:"1" maximum:"12" example:"3"`
	}
}

type BuildResponse struct {
	Body scheduler.Result
}

type ScheduleListResponse struct {
	Body struct {
		Schedules []store.Schedule `json:"schedules"`
	}
}

type ScheduleDetailResponse struct {
	Body struct {
		Schedule store.Schedule        `json:"schedule"`
		Items    []store.ScheduledItem `json:"items"`
	}
}

type idInput struct {
	Id string `path:"id" maxLength:"20" doc:"Resource ID"`
}

type ReorderRequest struct {
	Id   string `path:"id" maxLength:"20" doc:"Schedule ID"`
	Body struct {
		From int `json:"from" minimum:"1" doc:"Current 1-based sequence number"`
		To   int `json:"to" minimum:"1" doc:"Target 1-based sequence number"`
	}
}

type itemInput struct {
	Id     string `path:"id" maxLength:"20" doc:"Schedule ID"`
	ItemID string `path:"itemID" maxLength:"20" doc:"Scheduled item ID"`
}

type ItemAvailabilityRequest struct {
	Id     string `path:"id" maxLength:"20" doc:"Schedule ID"`
	ItemID string `path:"itemID" maxLength:"20" doc:"Scheduled item ID"`
	Body   struct {
		Available bool `json:"available"`
	}
}

func parseID(raw string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseDatePtr(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFmt, raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// buildError maps non-content build failures to HTTP errors. Content
// failures (insufficient content, blocked pools) return nil so the full
// result with delay statistics reaches the client.
func buildError(res scheduler.Result) error {
	switch res.ErrorKind {
	case scheduler.ErrKindAlreadyExists:
		return huma.Error409Conflict(res.Message)
	case scheduler.ErrKindInvalidInput:
		return huma.Error400BadRequest(res.Message)
	case scheduler.ErrKindTransientDB:
		return huma.Error500InternalServerError(res.Message)
	case scheduler.ErrKindCancelled:
		return huma.Error503ServiceUnavailable(res.Message)
	}
	return nil
}

func createAssetHdlr(s *Server) func(ctx context.Context, req *AssetCreateRequest) (*AssetResponse, error) {
	return func(ctx context.Context, req *AssetCreateRequest) (*AssetResponse, error) {
		reg := req.Body
		if reg.ContentType == "" || reg.ContentTitle == "" || reg.FilePath == "" {
			return nil, huma.Error400BadRequest("content_type, content_title, and file_path are required")
		}
		na := store.NewAsset{
			ContentType:     reg.ContentType,
			ContentTitle:    reg.ContentTitle,
			DurationSeconds: reg.DurationSeconds,
			EngagementScore: reg.EngagementScore,
			ShelfLifeScore:  reg.ShelfLifeScore,
			Theme:           reg.Theme,
			FileName:        reg.FileName,
			FilePath:        reg.FilePath,
			FileSize:        reg.FileSize,
			StorageLocation: reg.StorageLocation,
			Featured:        reg.Featured,
		}
		var err error
		if na.MeetingDate, err = parseDatePtr(reg.MeetingDate); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid meeting_date: %s", err))
		}
		if na.ContentExpiryDate, err = parseDatePtr(reg.ContentExpiryDate); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid content_expiry_date: %s", err))
		}
		if na.GoLiveDate, err = parseDatePtr(reg.GoLiveDate); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid go_live_date: %s", err))
		}
		if reg.EncodedDate != "" {
			t, err := time.Parse(time.RFC3339, reg.EncodedDate)
			if err != nil {
				return nil, huma.Error400BadRequest(fmt.Sprintf("invalid encoded_date: %s", err))
			}
			na.EncodedDate = &t
		}
		if na.DurationSeconds <= 0 || na.EncodedDate == nil {
			info, err := mediaprobe.ProbeFile(reg.FilePath)
			if err != nil && na.DurationSeconds <= 0 {
				return nil, huma.Error400BadRequest(fmt.Sprintf("duration_seconds missing and media probe failed: %s", err))
			}
			if err == nil {
				if na.DurationSeconds <= 0 {
					na.DurationSeconds = info.DurationSeconds
				}
				if na.EncodedDate == nil {
					na.EncodedDate = info.EncodedDate
				}
			}
		}
		if na.ContentExpiryDate == nil {
			cfg := s.schedulerConfig()
			if days, ok := cfg.ContentExpiration[reg.ContentType]; ok && days > 0 {
				exp := time.Now().UTC().AddDate(0, 0, days)
				na.ContentExpiryDate = &exp
			}
		}
		asset, err := s.Store.CreateAsset(ctx, na)
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("create asset: %s", err))
		}
		if scheduler.IsHolidayGreeting(reg.FileName, reg.ContentTitle) {
			if err := s.Store.EnsureGreetingRotation(ctx, asset.ID); err != nil {
				return nil, huma.Error500InternalServerError(fmt.Sprintf("greeting rotation: %s", err))
			}
		}
		return &AssetResponse{Body: asset}, nil
	}
}

func listAssetsHdlr(s *Server) func(ctx context.Context, _ *struct{}) (*AssetListResponse, error) {
	return func(ctx context.Context, _ *struct{}) (*AssetListResponse, error) {
		assets, err := s.Store.ListAssets(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &AssetListResponse{}
		resp.Body.Assets = assets
		return resp, nil
	}
}

func getAssetHdlr(s *Server) func(ctx context.Context, input *idInput) (*AssetResponse, error) {
	return func(ctx context.Context, input *idInput) (*AssetResponse, error) {
		id, err := parseID(input.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		asset, err := s.Store.GetAsset(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("asset %s not found", input.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &AssetResponse{Body: asset}, nil
	}
}

func setAssetAvailabilityHdlr(s *Server) func(ctx context.Context, req *AvailabilityRequest) (*OkResponse, error) {
	return func(ctx context.Context, req *AvailabilityRequest) (*OkResponse, error) {
		id, err := parseID(req.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.SetAssetAvailability(ctx, id, req.Body.Available)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("asset %s not found", req.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &OkResponse{}
		resp.Body.Ok = true
		return resp, nil
	}
}

func listGreetingsHdlr(s *Server) func(ctx context.Context, _ *struct{}) (*GreetingListResponse, error) {
	return func(ctx context.Context, _ *struct{}) (*GreetingListResponse, error) {
		greetings, err := s.Store.ListGreetingRotations(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &GreetingListResponse{}
		resp.Body.Greetings = greetings
		return resp, nil
	}
}

func (s *Server) runBuild(kind string, maxErrors int, build func(b *scheduler.Builder) scheduler.Result) (*BuildResponse, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	start := time.Now()
	res := build(s.newBuilder(maxErrors))
	outcome := "success"
	if !res.Success {
		outcome = res.ErrorKind
	}
	observeBuild(kind, outcome, start)
	if err := buildError(res); err != nil {
		return nil, err
	}
	return &BuildResponse{Body: res}, nil
}

func buildDailyHdlr(s *Server) func(ctx context.Context, req *BuildDailyRequest) (*BuildResponse, error) {
	return func(ctx context.Context, req *BuildDailyRequest) (*BuildResponse, error) {
		date, err := time.Parse(dateFmt, req.Body.Date)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid date: %s", err))
		}
		return s.runBuild("daily", req.Body.MaxErrors, func(b *scheduler.Builder) scheduler.Result {
			return b.BuildDaily(ctx, date, req.Body.Name)
		})
	}
}

func buildWeeklyHdlr(s *Server) func(ctx context.Context, req *BuildWeeklyRequest) (*BuildResponse, error) {
	return func(ctx context.Context, req *BuildWeeklyRequest) (*BuildResponse, error) {
		date, err := time.Parse(dateFmt, req.Body.StartDate)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid start_date: %s", err))
		}
		return s.runBuild("weekly", 0, func(b *scheduler.Builder) scheduler.Result {
			return b.BuildWeekly(ctx, date, req.Body.Name)
		})
	}
}

func buildMonthlyHdlr(s *Server) func(ctx context.Context, req *BuildMonthlyRequest) (*BuildResponse, error) {
	return func(ctx context.Context, req *BuildMonthlyRequest) (*BuildResponse, error) {
		return s.runBuild("monthly", 0, func(b *scheduler.Builder) scheduler.Result {
			return b.BuildMonthly(ctx, req.Body.Year, time.Month(req.Body.Month))
		})
	}
}

type scheduleListInput struct {
	Start string `query:"start_date" doc:"Earliest air date (YYYY-MM-DD)"`
	End   string `query:"end_date" doc:"Latest air date (YYYY-MM-DD)"`
}

func listSchedulesHdlr(s *Server) func(ctx context.Context, input *scheduleListInput) (*ScheduleListResponse, error) {
	return func(ctx context.Context, input *scheduleListInput) (*ScheduleListResponse, error) {
		var start, end time.Time
		if p, err := parseDatePtr(input.Start); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid start_date: %s", err))
		} else if p != nil {
			start = *p
		}
		if p, err := parseDatePtr(input.End); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid end_date: %s", err))
		} else if p != nil {
			end = *p
		}
		schedules, err := s.Store.ListSchedules(ctx, start, end)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &ScheduleListResponse{}
		resp.Body.Schedules = schedules
		return resp, nil
	}
}

func getScheduleHdlr(s *Server) func(ctx context.Context, input *idInput) (*ScheduleDetailResponse, error) {
	return func(ctx context.Context, input *idInput) (*ScheduleDetailResponse, error) {
		id, err := parseID(input.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		sch, err := s.Store.GetSchedule(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("schedule %s not found", input.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		items, err := s.Store.ItemsForSchedule(ctx, id)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &ScheduleDetailResponse{}
		resp.Body.Schedule = sch
		resp.Body.Items = items
		return resp, nil
	}
}

func deleteScheduleHdlr(s *Server) func(ctx context.Context, input *idInput) (*OkResponse, error) {
	return func(ctx context.Context, input *idInput) (*OkResponse, error) {
		id, err := parseID(input.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.DeleteSchedule(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("schedule %s not found", input.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &OkResponse{}
		resp.Body.Ok = true
		return resp, nil
	}
}

func reorderItemHdlr(s *Server) func(ctx context.Context, req *ReorderRequest) (*OkResponse, error) {
	return func(ctx context.Context, req *ReorderRequest) (*OkResponse, error) {
		id, err := parseID(req.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.ReorderItem(ctx, id, req.Body.From, req.Body.To)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("schedule %s not found", req.Id))
		}
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		resp := &OkResponse{}
		resp.Body.Ok = true
		return resp, nil
	}
}

func deleteItemHdlr(s *Server) func(ctx context.Context, input *itemInput) (*OkResponse, error) {
	return func(ctx context.Context, input *itemInput) (*OkResponse, error) {
		id, err := parseID(input.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		itemID, err := parseID(input.ItemID)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.DeleteItem(ctx, id, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("item %s not found in schedule %s", input.ItemID, input.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &OkResponse{}
		resp.Body.Ok = true
		return resp, nil
	}
}

func itemAvailabilityHdlr(s *Server) func(ctx context.Context, req *ItemAvailabilityRequest) (*OkResponse, error) {
	return func(ctx context.Context, req *ItemAvailabilityRequest) (*OkResponse, error) {
		id, err := parseID(req.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		itemID, err := parseID(req.ItemID)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.ToggleItemAvailability(ctx, id, itemID, req.Body.Available)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("item %s not found in schedule %s", req.ItemID, req.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		resp := &OkResponse{}
		resp.Body.Ok = true
		return resp, nil
	}
}

func recalculateHdlr(s *Server) func(ctx context.Context, input *idInput) (*ScheduleDetailResponse, error) {
	return func(ctx context.Context, input *idInput) (*ScheduleDetailResponse, error) {
		id, err := parseID(input.Id)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		err = s.Store.RecalculateScheduleTimes(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("schedule %s not found", input.Id))
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return getScheduleHdlr(s)(ctx, input)
	}
}

func createRouteAPI(s *Server) func(r chi.Router) {
	return func(r chi.Router) {
		config := huma.DefaultConfig("Chansched scheduling API", "1.0.0")
		config.Servers = []*huma.Server{
			{URL: "/api"},
		}
		config.Info.Description = `Register media assets, build daily, weekly, and monthly
		playout schedules from the asset library, and adjust built schedules.`

		api := humachi.New(r, config)

		huma.Register(api, huma.Operation{
			OperationID:   "create-asset",
			Method:        http.MethodPost,
			Path:          "/assets",
			Summary:       "Register a media asset",
			Tags:          []string{"assets"},
			DefaultStatus: http.StatusCreated,
			Errors:        []int{400},
		}, createAssetHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "list-assets",
			Method:      http.MethodGet,
			Path:        "/assets",
			Summary:     "List all library assets",
			Tags:        []string{"assets"},
		}, listAssetsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-asset",
			Method:      http.MethodGet,
			Path:        "/assets/{id}",
			Summary:     "Get one asset",
			Tags:        []string{"assets"},
			Errors:      []int{400, 404},
		}, getAssetHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "set-asset-availability",
			Method:      http.MethodPut,
			Path:        "/assets/{id}/availability",
			Summary:     "Enable or disable an asset for scheduling",
			Tags:        []string{"assets"},
			Errors:      []int{400, 404},
		}, setAssetAvailabilityHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "list-greetings",
			Method:      http.MethodGet,
			Path:        "/greetings",
			Summary:     "List holiday greeting rotation counters",
			Tags:        []string{"assets"},
		}, listGreetingsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "build-daily-schedule",
			Method:      http.MethodPost,
			Path:        "/schedules/daily",
			Summary:     "Build a 24-hour schedule for one air date",
			Description: "Builds the schedule and reports delay relaxation statistics. Content shortfalls are reported in the result body, not as HTTP errors.",
			Tags:        []string{"schedules"},
			Errors:      []int{400, 409, 503},
		}, buildDailyHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "build-weekly-schedule",
			Method:      http.MethodPost,
			Path:        "/schedules/weekly",
			Summary:     "Build a 7-day schedule starting on a Sunday",
			Tags:        []string{"schedules"},
			Errors:      []int{400, 409, 503},
		}, buildWeeklyHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "build-monthly-schedule",
			Method:      http.MethodPost,
			Path:        "/schedules/monthly",
			Summary:     "Build a schedule covering one calendar month",
			Tags:        []string{"schedules"},
			Errors:      []int{400, 409, 503},
		}, buildMonthlyHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "list-schedules",
			Method:      http.MethodGet,
			Path:        "/schedules",
			Summary:     "List schedules by air date range",
			Tags:        []string{"schedules"},
			Errors:      []int{400},
		}, listSchedulesHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-schedule",
			Method:      http.MethodGet,
			Path:        "/schedules/{id}",
			Summary:     "Get a schedule with all its items",
			Tags:        []string{"schedules"},
			Errors:      []int{400, 404},
		}, getScheduleHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "delete-schedule",
			Method:      http.MethodDelete,
			Path:        "/schedules/{id}",
			Summary:     "Delete a schedule and restore airing counts",
			Tags:        []string{"schedules"},
			Errors:      []int{400, 404},
		}, deleteScheduleHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "reorder-item",
			Method:      http.MethodPost,
			Path:        "/schedules/{id}/items/reorder",
			Summary:     "Move an item to a new position",
			Description: "Moves the item at sequence number 'from' to 'to' and re-times the schedule.",
			Tags:        []string{"items"},
			Errors:      []int{400, 404},
		}, reorderItemHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "delete-item",
			Method:      http.MethodDelete,
			Path:        "/schedules/{id}/items/{itemID}",
			Summary:     "Delete one scheduled item",
			Tags:        []string{"items"},
			Errors:      []int{400, 404},
		}, deleteItemHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "set-item-availability",
			Method:      http.MethodPost,
			Path:        "/schedules/{id}/items/{itemID}/availability",
			Summary:     "Mark a scheduled item as skipped or airable",
			Tags:        []string{"items"},
			Errors:      []int{400, 404},
		}, itemAvailabilityHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "recalculate-schedule",
			Method:      http.MethodPost,
			Path:        "/schedules/{id}/recalculate",
			Summary:     "Recompute sequence numbers and start times",
			Tags:        []string{"items"},
			Errors:      []int{400, 404},
		}, recalculateHdlr(s))
	}
}
