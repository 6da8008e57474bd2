package scope

import (
	"log/slog"
	"maps"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// frozenFrameThreshold is the long task duration from which a long task also
// counts as a frozen frame.
const frozenFrameThreshold = 700 * time.Millisecond

// viewParent is the upward context accessor a view keeps on its session.
type viewParent interface {
	sessionContext() domain.ScopeContext
	sampled() bool
}

// ViewScope tracks one view instance, its pending resources and at most one
// pending user action.
type ViewScope struct {
	parent viewParent
	deps   *Dependencies
	logger *slog.Logger

	id            domain.RUMUUID
	identity      domain.ViewIdentity
	path          string
	name          string
	startTime     time.Time
	stopTime      time.Time
	isInitialView bool
	isActive      bool
	attributes    map[string]any

	actionCount      int64
	errorCount       int64
	resourceCount    int64
	longTaskCount    int64
	frozenFrameCount int64
	frustrationCount int64
	hangDuration     time.Duration

	documentVersion    int64
	customTimings      map[string]int64
	featureFlags       map[string]any
	internalAttributes map[string]any

	resources map[string]*ResourceScope
	action    *UserActionScope

	tns     ports.TNSMetricTracker
	hitches ports.ViewHitchesTracker
}

type viewStart struct {
	identity   domain.ViewIdentity
	path       string
	name       string
	attributes map[string]any
	at         time.Time
	initial    bool
}

func newViewScope(parent viewParent, deps *Dependencies, vs viewStart) *ViewScope {
	name := vs.name
	if name == "" {
		name = vs.path
	}
	id := deps.UUIDs.NewUUID()
	return &ViewScope{
		parent:             parent,
		deps:               deps,
		logger:             deps.Logger.With(slog.String("view_name", name), slog.String("view_id", id.String())),
		id:                 id,
		identity:           vs.identity,
		path:               vs.path,
		name:               name,
		startTime:          vs.at,
		isInitialView:      vs.initial,
		isActive:           true,
		attributes:         maps.Clone(vs.attributes),
		customTimings:      make(map[string]int64),
		featureFlags:       make(map[string]any),
		internalAttributes: make(map[string]any),
		resources:          make(map[string]*ResourceScope),
		tns:                deps.TNSFactory(vs.at, name),
		hitches:            deps.HitchesFactory(),
	}
}

// ID returns the view identifier.
func (v *ViewScope) ID() domain.RUMUUID { return v.id }

// IsActive reports whether the view was not stopped yet.
func (v *ViewScope) IsActive() bool { return v.isActive }

// HasPendingResources reports whether resources are still in flight.
func (v *ViewScope) HasPendingResources() bool { return len(v.resources) > 0 }

// DocumentVersion returns the version of the last emitted view update.
func (v *ViewScope) DocumentVersion() int64 { return v.documentVersion }

func (v *ViewScope) scopeContext() domain.ScopeContext {
	ctx := v.parent.sessionContext()
	id := v.id
	ctx.ActiveViewID = &id
	ctx.ActiveViewPath = v.path
	ctx.ActiveViewName = v.name
	if v.action != nil {
		actionID := v.action.id
		ctx.ActiveUserActionID = &actionID
	}
	return ctx
}

func (v *ViewScope) ref() domain.ViewRef {
	return domain.ViewRef{ID: v.id.String(), URL: v.path, Name: v.name}
}

func (v *ViewScope) actionRef() *domain.ActionRef {
	if v.action == nil {
		return nil
	}
	return &domain.ActionRef{ID: v.action.id.String()}
}

func (v *ViewScope) eventCommon(date time.Time, attributes map[string]any, sdk domain.SDKContext) domain.EventCommon {
	ctx := v.parent.sessionContext()
	active := ctx.IsSessionActive
	return domain.EventCommon{
		Date:        date,
		Application: domain.ApplicationRef{ID: ctx.ApplicationID},
		Session:     domain.SessionRef{ID: ctx.SessionID.String(), Type: "user", IsActive: &active},
		Service:     sdk.Service,
		Version:     sdk.Version,
		Source:      sdk.Source,
		Context:     mergeAttributes(v.attributes, attributes),
		Internal:    domain.EventInternal{FormatVersion: eventFormatVersion},
	}
}

// start notifies trackers and emits the first view update. The initial view
// of the initial session also reports the application_start action.
func (v *ViewScope) start(sdk domain.SDKContext) {
	v.hitches.Start(v.startTime)
	v.deps.INVTracker.TrackViewStart(v.startTime, v.name, v.id)
	if v.isInitialView {
		v.sendApplicationStart(sdk)
	}
	v.sendUpdate(v.startTime, sdk)
}

// Process handles one command. Routed commands are addressed to this view;
// other views only get a tick so pending actions can time out. It returns
// false once the view is stopped with no pending resource or action.
func (v *ViewScope) Process(cmd domain.Command, sdk domain.SDKContext, routed bool) bool {
	at := cmd.CommandTime()
	changed := false

	if v.action != nil {
		var keep bool
		if routed {
			keep = v.action.Process(cmd, sdk)
		} else {
			keep = v.action.tick(at, sdk)
		}
		if !keep {
			v.action = nil
			changed = true
		}
	}

	if routed && v.handle(cmd, sdk) {
		changed = true
	}

	if changed {
		v.sendUpdate(at, sdk)
	}

	if !v.isActive && len(v.resources) == 0 && v.action == nil {
		v.deps.INVTracker.TrackViewComplete(v.id)
		return false
	}
	return true
}

// handle applies a routed command and reports whether the view changed.
func (v *ViewScope) handle(cmd domain.Command, sdk domain.SDKContext) bool {
	switch c := cmd.(type) {
	case domain.StartView:
		if v.isActive {
			v.stop(c.Time, nil)
			return true
		}
	case domain.StopView:
		if v.isActive && c.Identity == v.identity {
			v.stop(c.Time, c.Attributes)
			return true
		}
	case domain.StopSession:
		if v.isActive {
			v.stop(c.Time, nil)
			return true
		}
	case domain.StartResource:
		v.startResource(c)
		return true
	case domain.StopResource, domain.StopResourceWithError, domain.AddResourceMetrics:
		key := cmd.(domain.ResourceCommand).ResourceKey()
		resource, ok := v.resources[key]
		if !ok {
			return false
		}
		if !resource.Process(cmd, sdk) {
			delete(v.resources, key)
			return true
		}
	case domain.StartUserAction:
		return v.startAction(c.Time, c.ActionType, c.ActionName, c.Instrumentation, true, c.Attributes)
	case domain.AddUserAction:
		if c.ActionType == domain.ActionTypeCustom {
			v.sendCustomAction(c, sdk)
			return true
		}
		return v.startAction(c.Time, c.ActionType, c.ActionName, c.Instrumentation, false, c.Attributes)
	case domain.StopUserAction:
		v.logger.Debug("no pending continuous action to stop", slog.String("action_type", string(c.ActionType)))
	case domain.AddCurrentViewError:
		v.addError(c, sdk)
		return true
	case domain.AddCurrentViewAppHang:
		v.addAppHang(c, sdk)
		return true
	case domain.AddLongTask:
		v.addLongTask(c, sdk)
		return true
	case domain.AddViewTiming:
		if !v.isActive {
			v.logger.Debug("ignoring timing on stopped view", slog.String("timing", c.TimingName))
			return false
		}
		name := sanitizeTimingName(c.TimingName, v.logger)
		v.customTimings[name] = nanos(c.Time.Sub(v.startTime))
		return true
	case domain.AddFeatureFlagEvaluation:
		v.featureFlags[c.FlagName] = c.Value
		return true
	case domain.SetInternalViewAttribute:
		v.internalAttributes[c.Key] = c.Value
		return true
	}
	return false
}

func (v *ViewScope) stop(at time.Time, attributes map[string]any) {
	v.isActive = false
	v.stopTime = at
	v.attributes = mergeAttributes(v.attributes, attributes)
	v.tns.TrackViewWasStopped()
	v.hitches.Stop(at)
}

// release frees the metric trackers of a view discarded with its expired
// session. No event is written.
func (v *ViewScope) release(at time.Time) {
	if v.isActive {
		v.tns.TrackViewWasStopped()
		v.hitches.Stop(at)
	}
	v.deps.INVTracker.TrackViewComplete(v.id)
}

func (v *ViewScope) timeSpent(at time.Time) time.Duration {
	end := at
	if !v.isActive {
		end = v.stopTime
	}
	return positiveDuration(end.Sub(v.startTime))
}

func (v *ViewScope) write(event domain.Event) bool {
	if !v.parent.sampled() {
		return false
	}
	return v.deps.Writer.Write(event)
}

func (v *ViewScope) startResource(cmd domain.StartResource) {
	var actionID *domain.RUMUUID
	if v.action != nil {
		id := v.action.id
		actionID = &id
		v.action.attachResource(cmd.Key)
	}
	resource := newResourceScope(v, cmd, actionID)
	if _, exists := v.resources[cmd.Key]; exists {
		v.logger.Warn("resource key reused before completion", slog.String("resource_key", cmd.Key))
	}
	v.resources[cmd.Key] = resource
	v.tns.TrackResourceStart(cmd.Time, resource.id, cmd.URL)
}

// writeResourceEvent counts and writes the terminal event of a resource,
// rolling the count back when the writer drops it.
func (v *ViewScope) writeResourceEvent(key string, event domain.Event, isError bool) bool {
	counter := &v.resourceCount
	if isError {
		counter = &v.errorCount
	}
	*counter++
	if !v.write(event) {
		*counter--
		return false
	}
	if v.action != nil {
		v.action.resourceCompleted(key, isError)
	}
	return true
}

// writeAction counts and writes an action event, rolling the counts back when
// the writer drops it.
func (v *ViewScope) writeAction(event *domain.ActionEvent, start, end time.Time) bool {
	var frustrations int64
	if event.Action.Frustration != nil {
		frustrations = int64(len(event.Action.Frustration.Type))
	}

	v.actionCount++
	v.frustrationCount += frustrations
	if !v.write(event) {
		v.actionCount--
		v.frustrationCount -= frustrations
		return false
	}
	v.deps.INVTracker.TrackAction(start, end, event.Action.Target.Name, event.Action.Type, v.id)
	return true
}

// outranks reports whether an action from next replaces a pending action
// from pending. Manual calls beat automatic instrumentation; between two
// different automatic sources the most recent wins; otherwise the pending
// action stays.
func outranks(next, pending domain.Instrumentation) bool {
	if next.IsManual() != pending.IsManual() {
		return next.IsManual()
	}
	return !next.IsManual() && next != pending
}

func (v *ViewScope) startAction(at time.Time, actionType domain.ActionType, name string, instrumentation domain.Instrumentation, continuous bool, attributes map[string]any) bool {
	if pending := v.action; pending != nil {
		if pending.actionType == actionType && outranks(instrumentation, pending.instrumentation) {
			v.logger.Warn("replacing pending user action with higher priority one",
				slog.String("pending_action", pending.name),
				slog.String("pending_instrumentation", string(pending.instrumentation)),
				slog.String("action_name", name),
				slog.String("instrumentation", string(instrumentation)))
		} else {
			v.logger.Warn("dropping user action, another one is pending",
				slog.String("action_type", string(actionType)),
				slog.String("action_name", name),
				slog.String("instrumentation", string(instrumentation)),
				slog.String("pending_action", pending.name))
			return false
		}
	}

	replaced := v.action
	v.action = newUserActionScope(v, at, actionType, name, instrumentation, continuous, attributes)
	if replaced != nil {
		v.reattachResources(replaced)
	}
	return true
}

// reattachResources moves the in-flight resources of a replaced action onto
// the pending one, so their events never reference an action that is not written.
func (v *ViewScope) reattachResources(replaced *UserActionScope) {
	id := v.action.id
	for key, r := range v.resources {
		if r.actionID == nil || *r.actionID != replaced.id {
			continue
		}
		r.actionID = &id
		v.action.attachResource(key)
	}
}

func (v *ViewScope) sendCustomAction(cmd domain.AddUserAction, sdk domain.SDKContext) {
	event := &domain.ActionEvent{
		EventCommon: v.eventCommon(cmd.Time, cmd.Attributes, sdk),
		View:        v.ref(),
		Action: domain.ActionDetails{
			ID:     v.deps.UUIDs.NewUUID().String(),
			Type:   domain.ActionTypeCustom,
			Target: domain.ActionTarget{Name: cmd.ActionName},
		},
	}
	v.writeAction(event, cmd.Time, cmd.Time)
}

func (v *ViewScope) sendApplicationStart(sdk domain.SDKContext) {
	event := &domain.ActionEvent{
		EventCommon: v.eventCommon(v.startTime, nil, sdk),
		View:        v.ref(),
		Action: domain.ActionDetails{
			ID:     v.deps.UUIDs.NewUUID().String(),
			Type:   domain.ActionTypeApplicationStart,
			Target: domain.ActionTarget{Name: string(domain.ActionTypeApplicationStart)},
		},
	}
	if sdk.LaunchTime > 0 {
		lt := nanos(sdk.LaunchTime)
		event.Action.LoadingTime = &lt
	}
	v.writeAction(event, v.startTime, v.startTime)
}

func (v *ViewScope) addError(cmd domain.AddCurrentViewError, sdk domain.SDKContext) {
	source := cmd.Source
	if source == "" {
		source = domain.ErrorSourceSource
	}
	event := &domain.ErrorEvent{
		EventCommon: v.eventCommon(cmd.Time, cmd.Attributes, sdk),
		View:        v.ref(),
		Action:      v.actionRef(),
		Error: domain.ErrorDetails{
			ID:       v.deps.UUIDs.NewUUID().String(),
			Message:  cmd.Message,
			Type:     cmd.ErrorType,
			Source:   source,
			Stack:    cmd.Stack,
			IsCrash:  cmd.IsCrash,
			Category: domain.ErrorCategoryException,
		},
	}

	v.errorCount++
	if !v.write(event) {
		v.errorCount--
		return
	}
	if v.action != nil {
		v.action.errorAdded()
	}
}

func (v *ViewScope) addAppHang(cmd domain.AddCurrentViewAppHang, sdk domain.SDKContext) {
	event := &domain.ErrorEvent{
		EventCommon: v.eventCommon(cmd.Time, cmd.Attributes, sdk),
		View:        v.ref(),
		Action:      v.actionRef(),
		Error: domain.ErrorDetails{
			ID:       v.deps.UUIDs.NewUUID().String(),
			Message:  cmd.Message,
			Type:     cmd.ErrorType,
			Source:   domain.ErrorSourceSource,
			Stack:    cmd.Stack,
			Category: domain.ErrorCategoryAppHang,
			Freeze:   &domain.ErrorFreeze{Duration: nanos(cmd.HangDuration)},
		},
	}

	v.errorCount++
	if !v.write(event) {
		v.errorCount--
		return
	}
	v.hangDuration += cmd.HangDuration
	if v.action != nil {
		v.action.errorAdded()
	}
}

func (v *ViewScope) addLongTask(cmd domain.AddLongTask, sdk domain.SDKContext) {
	frozen := cmd.Duration >= frozenFrameThreshold
	event := &domain.LongTaskEvent{
		EventCommon: v.eventCommon(cmd.Time.Add(-cmd.Duration), cmd.Attributes, sdk),
		View:        v.ref(),
		Action:      v.actionRef(),
		LongTask: domain.LongTaskDetails{
			ID:            v.deps.UUIDs.NewUUID().String(),
			Duration:      nanos(cmd.Duration),
			IsFrozenFrame: frozen,
		},
	}

	v.longTaskCount++
	if frozen {
		v.frozenFrameCount++
	}
	if !v.write(event) {
		v.longTaskCount--
		if frozen {
			v.frozenFrameCount--
		}
		return
	}
	if v.action != nil {
		v.action.longTaskAdded()
	}
}

// sendUpdate emits the next version of the view event. View events are never
// dropped by the writer; if one is, the version is reused by the next update.
func (v *ViewScope) sendUpdate(at time.Time, sdk domain.SDKContext) {
	if !v.parent.sampled() {
		return
	}

	timeSpent := v.timeSpent(at)
	details := domain.ViewDetails{
		ID:          v.id.String(),
		URL:         v.path,
		Name:        v.name,
		TimeSpent:   nanos(timeSpent),
		IsActive:    v.isActive || len(v.resources) > 0,
		Action:      domain.Count{Count: v.actionCount},
		Error:       domain.Count{Count: v.errorCount},
		Resource:    domain.Count{Count: v.resourceCount},
		LongTask:    domain.Count{Count: v.longTaskCount},
		FrozenFrame: domain.Count{Count: v.frozenFrameCount},
		Frustration: domain.Count{Count: v.frustrationCount},
	}
	if len(v.customTimings) > 0 {
		details.CustomTimings = maps.Clone(v.customTimings)
	}
	if len(v.internalAttributes) > 0 {
		details.InternalAttributes = maps.Clone(v.internalAttributes)
	}
	if tns, ok := v.tns.Value(at, sdk.ApplicationState); ok {
		value := nanos(tns)
		details.NetworkSettledTime = &value
	}
	if inv, ok := v.deps.INVTracker.Value(v.id); ok {
		value := nanos(inv)
		details.InteractionToNextViewTime = &value
	}

	hitches := v.hitches.Snapshot()
	for _, h := range hitches.Hitches {
		details.SlowFrames = append(details.SlowFrames, domain.SlowFrame{
			Start:    nanos(h.Start.Sub(v.startTime)),
			Duration: nanos(h.Duration),
		})
	}
	if !v.isActive && timeSpent >= v.deps.Settings.MinViewDurationForRates {
		// Slow frames in ms per second, freezes in seconds per hour.
		slowFramesRate := float64(hitches.TotalDuration.Milliseconds()) / timeSpent.Seconds()
		freezeRate := v.hangDuration.Seconds() * 3600 / timeSpent.Seconds()
		details.SlowFramesRate = &slowFramesRate
		details.FreezeRate = &freezeRate
	}

	event := &domain.ViewEvent{
		EventCommon: v.eventCommon(v.startTime, nil, sdk),
		View:        details,
	}
	if len(v.featureFlags) > 0 {
		event.FeatureFlags = maps.Clone(v.featureFlags)
	}

	v.documentVersion++
	event.Internal.DocumentVersion = v.documentVersion
	event.Internal.SessionPrecondition = v.parent.sessionContext().SessionPrecondition
	if !v.deps.Writer.Write(event) {
		v.documentVersion--
	}
}
