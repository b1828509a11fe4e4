// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/playout-works/chansched/internal/store"
)

const (
	// tailGapS is the end-of-day remainder that is accepted as filled.
	tailGapS = 60.0
	// tailWindowS is the window inside which an exhausted rotation cycle
	// still counts as a successful day close.
	tailWindowS = 1800.0
	// maxNoProgress bounds consecutive loop iterations without a placement.
	maxNoProgress = 50
	// maxEmptyCycles bounds full rotation cycles yielding no content.
	maxEmptyCycles = 3
	// dayFillFraction and dayFillFloorS gate the day close: a day must be
	// 95 % full, or hold at least 20 h, to count as complete.
	dayFillFraction = 0.95
	dayFillFloorS   = 20 * 3600.0
)

// Builder generates daily, weekly, and monthly schedules. It is not safe
// for concurrent use; create one per build.
type Builder struct {
	lib    Library
	cfg    Config
	logger *slog.Logger
	rnd    *rand.Rand
}

// New returns a builder seeded from the clock.
func New(lib Library, cfg Config, logger *slog.Logger) *Builder {
	return NewSeeded(lib, cfg, logger, time.Now().UnixNano())
}

// NewSeeded returns a builder with a deterministic random source.
func NewSeeded(lib Library, cfg Config, logger *slog.Logger, seed int64) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		lib:    lib,
		cfg:    cfg,
		logger: logger,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// BuildDaily generates a 24-hour schedule for the given date.
func (b *Builder) BuildDaily(ctx context.Context, date time.Time, name string) Result {
	if date.IsZero() {
		return failure(ErrKindInvalidInput, "schedule date is required", 0, 0)
	}
	day := date.UTC().Truncate(24 * time.Hour)
	if name == "" {
		name = "Daily " + day.Format("2006-01-02")
	}
	return b.build(ctx, name, day, 1, nil)
}

// BuildWeekly generates a 7-day schedule. A non-Sunday start is corrected
// to the preceding Sunday, with an advisory in the result.
func (b *Builder) BuildWeekly(ctx context.Context, startDate time.Time, name string) Result {
	if startDate.IsZero() {
		return failure(ErrKindInvalidInput, "schedule start date is required", 0, 0)
	}
	day := startDate.UTC().Truncate(24 * time.Hour)
	var advisories []string
	if wd := day.Weekday(); wd != time.Sunday {
		corrected := day.AddDate(0, 0, -int(wd))
		advisories = append(advisories, fmt.Sprintf(
			"weekly start %s is not a Sunday, corrected to %s",
			day.Format("2006-01-02"), corrected.Format("2006-01-02")))
		day = corrected
	}
	if name == "" {
		name = "Week of " + day.Format("2006-01-02")
	}
	return b.build(ctx, name, day, 7, advisories)
}

// BuildMonthly generates a schedule covering every day of the given month.
func (b *Builder) BuildMonthly(ctx context.Context, year int, month time.Month) Result {
	if year < 2000 || month < time.January || month > time.December {
		return failure(ErrKindInvalidInput, fmt.Sprintf("invalid month %d-%d", year, month), 0, 0)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, 0).Sub(first).Hours() / 24
	name := first.Format("January 2006")
	return b.build(ctx, name, first, int(days), nil)
}

// run is the mutable state of one build.
type run struct {
	b         *Builder
	schedule  store.Schedule
	startDate time.Time
	numDays   int

	totalS float64
	seq    int

	rotation  *Rotation
	provider  *candidateProvider
	featured  *featuredSelector
	greetings *greetingRotator

	excl        *excludeSet
	recentPlays map[int64][]float64
	placed      []placedItem
	featRules   store.FeaturedRules

	lastTheme     string
	lastFeaturedS float64

	stats      DelayStats
	advisories []string

	// Loop-guard counters, reset on every placement.
	noProgress      int
	emptyCycles     int
	placedThisCycle bool
	consecErrors    int
}

// classifyErr maps a store error to a result error kind.
func classifyErr(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrKindCancelled
	}
	return ErrKindTransientDB
}

func (b *Builder) build(ctx context.Context, name string, startDate time.Time, numDays int, advisories []string) Result {
	if ctx.Err() != nil {
		return failure(ErrKindCancelled, ctx.Err().Error(), 0, 0)
	}
	exists, err := b.lib.ScheduleExistsForDate(ctx, startDate)
	if err != nil {
		return failure(classifyErr(err), err.Error(), 0, 0)
	}
	if exists {
		return failure(ErrKindAlreadyExists,
			"a schedule already exists for "+startDate.Format("2006-01-02"), 0, 0)
	}
	sch, err := b.lib.CreateSchedule(ctx, name, startDate, b.cfg.Channel)
	if err != nil {
		return failure(classifyErr(err), err.Error(), 0, 0)
	}

	r := &run{
		b:             b,
		schedule:      sch,
		startDate:     startDate,
		numDays:       numDays,
		rotation:      NewRotation(b.cfg.RotationOrder),
		excl:          newExcludeSet(),
		recentPlays:   make(map[int64][]float64),
		featRules:     b.cfg.featuredRules(),
		lastFeaturedS: -1,
		advisories:    advisories,
		greetings:     newGreetingRotator(b.lib, b.logger, b.cfg.HolidayGreetingsEnabled),
		featured:      &featuredSelector{lib: b.lib, cfg: &b.cfg, rnd: b.rnd},
	}
	r.provider = &candidateProvider{
		lib:        b.lib,
		cfg:        &b.cfg,
		logger:     b.logger,
		stats:      &r.stats,
		advisories: &r.advisories,
	}

	if err := r.greetings.preassign(ctx, startDate, numDays); err != nil {
		return r.rollback(ctx, classifyErr(err), err.Error(), 0)
	}

	for d := 0; d < numDays; d++ {
		r.rotation.Reset()
		r.emptyCycles = 0
		r.placedThisCycle = false
		dayStartS := r.totalS
		kind, msg := r.fillDay(ctx, d)
		if kind != "" {
			return r.rollback(ctx, kind, msg, d)
		}
		placedS := r.totalS - dayStartS
		if placedS < dayFillFraction*store.SecondsPerDay && placedS < dayFillFloorS {
			return r.rollback(ctx, ErrKindInsufficientContent, fmt.Sprintf(
				"day %s closed with only %.1f hours of content",
				startDate.AddDate(0, 0, d).Format("2006-01-02"), placedS/3600), d)
		}
		b.logger.Info("day complete", "schedule", sch.ID, "day", d,
			"items", r.seq, "hours", placedS/3600)
	}

	if err := b.lib.SetScheduleDuration(ctx, sch.ID, r.totalS); err != nil {
		return r.rollback(ctx, ErrKindTransientDB, err.Error(), numDays)
	}
	b.logger.Info("schedule built", "schedule", sch.ID, "name", name,
		"days", numDays, "items", r.seq, "hours", r.totalS/3600,
		"resets", r.stats.Resets)
	return Result{
		Success:              true,
		ScheduleID:           sch.ID,
		Name:                 name,
		TotalItems:           r.seq,
		TotalDurationSeconds: r.totalS,
		DaysCompleted:        numDays,
		DelayStats:           r.stats,
		Advisories:           r.advisories,
	}
}

// rollback deletes the partial schedule and returns a failure result. The
// delete restores airing counters touched during the run.
func (r *run) rollback(ctx context.Context, kind, msg string, daysCompleted int) Result {
	r.b.logger.Error("build aborted", "schedule", r.schedule.ID,
		"kind", kind, "msg", msg, "hours", r.totalS/3600)
	if err := r.b.lib.DeleteSchedule(ctx, r.schedule.ID); err != nil {
		r.b.logger.Error("rollback failed", "schedule", r.schedule.ID, "err", err)
	}
	res := failure(kind, msg, r.totalS/3600, daysCompleted)
	res.DelayStats = r.stats
	res.Advisories = r.advisories
	return res
}

// fillDay places items until the day boundary. A non-empty return is an
// error kind that aborts the whole run.
func (r *run) fillDay(ctx context.Context, d int) (kind, msg string) {
	dayEndS := float64(d+1) * store.SecondsPerDay
	date := r.startDate.AddDate(0, 0, d)
	for {
		if ctx.Err() != nil {
			return ErrKindCancelled, ctx.Err().Error()
		}
		remaining := dayEndS - r.totalS
		if remaining < tailGapS {
			return "", ""
		}
		if r.emptyCycles >= 1 && remaining < tailWindowS {
			// Rotation exhausted inside the tail window; the day is done.
			return "", ""
		}
		if r.emptyCycles >= maxEmptyCycles {
			if r.provider.poolTooSmall {
				return ErrKindInsufficientContent, fmt.Sprintf(
					"content pools exhausted with %.1f hours unfilled", remaining/3600)
			}
			return ErrKindAllBlocked, fmt.Sprintf(
				"all categories blocked with %.1f hours unfilled", remaining/3600)
		}
		if r.noProgress >= maxNoProgress {
			return ErrKindInfiniteLoop, fmt.Sprintf(
				"no placement after %d attempts at %.2f hours", r.noProgress, r.totalS/3600)
		}
		if r.b.cfg.MaxErrors > 0 && r.consecErrors >= r.b.cfg.MaxErrors && remaining > 3600 {
			return ErrKindInsufficientContent, fmt.Sprintf(
				"%d consecutive selection errors", r.consecErrors)
		}
		if err := r.step(ctx, d, date, dayEndS); err != nil {
			return classifyErr(err), err.Error()
		}
	}
}

// step attempts one placement: featured bypass first, then the rotation
// token, with the holiday-greeting interleave on spots slots.
func (r *run) step(ctx context.Context, d int, date time.Time, dayEndS float64) error {
	remaining := dayEndS - r.totalS
	hourOfDay := int(math.Mod(r.totalS, store.SecondsPerDay) / 3600)

	if r.featured.wants(r.totalS, r.lastFeaturedS, hourOfDay) {
		c, err := r.featured.pick(ctx, r.excl, date)
		if err != nil {
			return r.selectionFailed("featured", err)
		}
		if c != nil && c.Asset.DurationSeconds <= remaining {
			return r.place(ctx, *c, d, true, false)
		}
	}

	token := r.rotation.Next()
	if token == store.CategoryLongForm && remaining < 3600 {
		r.advanceRotation()
		return nil
	}

	if token == store.CategorySpots {
		g, err := r.greetings.next(ctx, date, r.lastTheme)
		if err != nil {
			return r.selectionFailed("greeting", err)
		}
		if g != nil && g.Asset.DurationSeconds <= remaining {
			return r.place(ctx, *g, d, false, true)
		}
	}

	pool, err := r.provider.get(ctx, token, r.excl, date)
	if err != nil {
		return r.selectionFailed(token, err)
	}
	if len(pool) == 0 {
		r.noProgress++
		r.advanceRotation()
		return nil
	}

	chosen, featured := r.choose(pool, token, remaining, date)
	if chosen == nil {
		r.noProgress++
		r.advanceRotation()
		return nil
	}
	return r.place(ctx, *chosen, d, featured, false)
}

// selectionFailed absorbs a selection-stage error: the slot is skipped and
// rotation advances, so a flaky read cannot kill the run before the
// consecutive-error bound is reached. Cancellation still aborts.
func (r *run) selectionFailed(stage string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	r.b.logger.Warn("candidate selection failed", "stage", stage, "err", err)
	r.consecErrors++
	r.advanceRotation()
	return nil
}

// choose scores the pool and returns the best candidate that fits the
// remaining window, or nil when nothing fits. The second return reports
// whether the chosen candidate is featured.
func (r *run) choose(pool []store.Candidate, token string, remaining float64, date time.Time) (*store.Candidate, bool) {
	typeDelay := 0.0
	if !store.IsDurationCategory(token) {
		typeDelay = r.b.cfg.baseDelayHours(token)
	}
	spacingOK := r.lastFeaturedS < 0 ||
		r.totalS-r.lastFeaturedS >= r.b.cfg.Featured.MinimumSpacingHours*3600
	type scored struct {
		c        store.Candidate
		score    float64
		clash    bool
		featured bool
	}
	ranked := make([]scored, 0, len(pool))
	for _, c := range pool {
		featured := r.featRules.IsFeatured(c, date)
		if featured && !spacingOK {
			// Featured spacing binds no matter how the candidate surfaced.
			continue
		}
		theme := effectiveTheme(c)
		clash := themeConflict(r.placed, theme, c.Asset.DurationCategory)
		s := scoreCandidate(r.b.rnd, c, scoreInput{
			Featured:          featured,
			Token:             token,
			TypeMinDelayHours: typeDelay,
			NowS:              r.totalS,
			RemainingS:        remaining,
			Plays:             r.recentPlays[c.Asset.ID],
			ThemeConflict:     clash,
		})
		ranked = append(ranked, scored{c: c, score: s, clash: clash, featured: featured})
	}
	if len(ranked) == 0 {
		return nil, false
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if ranked[0].c.Asset.DurationSeconds <= remaining {
		return &ranked[0].c, ranked[0].featured
	}
	// Best does not fit; take the first fitting alternative without a
	// theme clash.
	for i := 1; i < len(ranked); i++ {
		if ranked[i].c.Asset.DurationSeconds <= remaining && !ranked[i].clash {
			return &ranked[i].c, ranked[i].featured
		}
	}
	return nil, false
}

// place appends the candidate as the next item and updates all run state.
func (r *run) place(ctx context.Context, c store.Candidate, d int, featured, greeting bool) error {
	startS := r.totalS
	item := store.ScheduledItem{
		ScheduleID:               r.schedule.ID,
		AssetID:                  c.Asset.ID,
		InstanceID:               &c.InstanceID,
		SequenceNumber:           r.seq + 1,
		ScheduledStartTime:       store.FormatStartTime(startS),
		ScheduledDurationSeconds: c.Asset.DurationSeconds,
		AvailableForScheduling:   true,
	}
	if r.numDays > 1 {
		day := d
		item.Metadata = &store.ItemMetadata{DayOffset: &day}
	}
	if err := r.b.lib.AppendItem(ctx, &item); err != nil {
		return fmt.Errorf("append item: %w", err)
	}
	r.seq++
	r.totalS += c.Asset.DurationSeconds + store.FrameGapSeconds

	theme := effectiveTheme(c)
	r.placed = append(r.placed, placedItem{
		AssetID:   c.Asset.ID,
		Category:  c.Asset.DurationCategory,
		Theme:     theme,
		StartS:    startS,
		DurationS: c.Asset.DurationSeconds,
		Featured:  featured,
	})
	r.recentPlays[c.Asset.ID] = append(r.recentPlays[c.Asset.ID], startS)
	r.excl.add(c.Asset.ID)
	r.lastTheme = theme

	airTime := r.startDate.Add(time.Duration(startS * float64(time.Second)))
	if err := r.b.lib.UpdateAssetLastScheduled(ctx, c.Asset.ID, airTime); err != nil {
		return fmt.Errorf("update last scheduled: %w", err)
	}
	if greeting || strings.EqualFold(theme, GreetingTheme) {
		if err := r.greetings.placed(ctx, c.Asset.ID, airTime); err != nil {
			return fmt.Errorf("record greeting: %w", err)
		}
	}

	if featured {
		r.lastFeaturedS = startS
	} else {
		r.advanceRotation()
	}
	r.noProgress = 0
	r.consecErrors = 0
	r.placedThisCycle = true
	r.emptyCycles = 0
	return nil
}

// advanceRotation steps the pointer and, on wrap, counts whether the cycle
// that just ended produced any placement.
func (r *run) advanceRotation() {
	r.rotation.Advance()
	if r.rotation.Pos() == 0 {
		if !r.placedThisCycle {
			r.emptyCycles++
		}
		r.placedThisCycle = false
	}
}
