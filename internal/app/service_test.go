package service_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/okian/precinct/internal/app"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// threeCountyScenario is the reference scenario: expected totals 100/200/300.
func threeCountyScenario() model.Scenario {
	return model.Scenario{
		ID:              "ref-3",
		Name:            "Three County Reference",
		DurationSeconds: 120,
		Baseline: []model.BaselineCounty{
			{FIPS: "42001", ExpectedTotalVotes: 100},
			{FIPS: "42003", ExpectedTotalVotes: 200},
			{FIPS: "42005", ExpectedTotalVotes: 300},
		},
	}
}

func fullyReported(dem, gop int64) model.CountyUpdate {
	return model.CountyUpdate{
		DemVotes:         dem,
		GopVotes:         gop,
		TotalVotes:       dem + gop,
		ReportingPercent: 100,
		FullyReported:    true,
	}
}

func startedService(ctx context.Context) *service.Service {
	svc := service.New(service.WithCallThreshold(99), service.WithSafetyMargin(5))
	_ = svc.Start(ctx)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a playback service", t, func() {
		ctx := context.Background()

		Convey("Before Start, controls are rejected", func() {
			svc := service.New()
			So(svc.Play(ctx), ShouldEqual, service.ErrNotStarted)
			So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldEqual, service.ErrNotStarted)
			So(svc.Status(ctx).State, ShouldEqual, model.PlaybackIdle)
		})

		Convey("After Start without a scenario", func() {
			svc := startedService(ctx)
			defer svc.Stop()

			So(svc.CountyStates(ctx), ShouldBeEmpty)
			_, err := svc.Aggregate(ctx, "national")
			So(errors.Is(err, service.ErrNoSnapshot), ShouldBeTrue)
			_, ok := svc.Scenario(ctx)
			So(ok, ShouldBeFalse)
		})

		Convey("Scenario validation rejects unusable bootstraps", func() {
			svc := startedService(ctx)
			defer svc.Stop()

			err := svc.LoadScenario(ctx, model.Scenario{DurationSeconds: 0})
			So(errors.Is(err, service.ErrInvalidScenario), ShouldBeTrue)
			err = svc.LoadScenario(ctx, model.Scenario{DurationSeconds: 60})
			So(errors.Is(err, service.ErrInvalidScenario), ShouldBeTrue)
		})
	})
}

func TestService_ReferenceScenario(t *testing.T) {
	Convey("Given the three-county scenario with one frame at t=10", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{
			Timestamp: 10,
			Counties:  map[string]model.CountyUpdate{"42001": fullyReported(40, 60)},
		})

		Convey("When the cursor reaches t=10", func() {
			svc.Derive(ctx, 10)

			Convey("Then the national rollup matches the contract", func() {
				nat, err := svc.Aggregate(ctx, "national")
				So(err, ShouldBeNil)
				So(nat.TotalVotes, ShouldEqual, 100)
				So(nat.VotesRemaining, ShouldEqual, 500)
				So(nat.CountiesReporting, ShouldEqual, 1)
				So(nat.TotalCounties, ShouldEqual, 3)
			})

			Convey("And state totals conserve the national total", func() {
				snap, ok := svc.Snapshot(ctx)
				So(ok, ShouldBeTrue)
				var sum int64
				for _, r := range snap.States {
					sum += r.TotalVotes
				}
				So(sum, ShouldEqual, snap.National.TotalVotes)
			})

			Convey("And the per-county state is visible", func() {
				st, ok := svc.County(ctx, "42001")
				So(ok, ShouldBeTrue)
				So(st.DemVotes, ShouldEqual, 40)
				So(st.GopVotes, ShouldEqual, 60)
				So(st.SourceTimestamp, ShouldEqual, 10)
			})
		})

		Convey("When the cursor sits before the first frame", func() {
			svc.Derive(ctx, 5)

			nat, err := svc.Aggregate(ctx, "national")
			So(err, ShouldBeNil)
			So(nat.TotalVotes, ShouldEqual, 0)
			So(nat.CountiesReporting, ShouldEqual, 0)
		})

		Convey("Scope resolution accepts postal and FIPS forms", func() {
			svc.Derive(ctx, 10)

			byPostal, err := svc.Aggregate(ctx, "PA")
			So(err, ShouldBeNil)
			byFIPS, err := svc.Aggregate(ctx, "42")
			So(err, ShouldBeNil)
			So(byPostal, ShouldResemble, byFIPS)

			_, err = svc.Aggregate(ctx, "ZZ")
			So(errors.Is(err, service.ErrUnknownScope), ShouldBeTrue)
		})
	})
}

func TestService_IdempotentSeek(t *testing.T) {
	Convey("Given buffered frames at several timestamps", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": {DemVotes: 10, GopVotes: 20, TotalVotes: 30, ReportingPercent: 30},
		}})
		svc.IngestFrame(ctx, model.Frame{Timestamp: 40, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(40, 60),
			"42003": {DemVotes: 50, GopVotes: 50, TotalVotes: 100, ReportingPercent: 50},
		}})

		Convey("When deriving the same cursor twice", func() {
			svc.Derive(ctx, 25)
			first := svc.CountyStates(ctx)
			svc.Derive(ctx, 25)
			second := svc.CountyStates(ctx)

			Convey("Then the snapshots are identical", func() {
				So(second, ShouldResemble, first)
			})
		})

		Convey("When scrubbing backward after going forward", func() {
			svc.Derive(ctx, 50)
			forward := svc.CountyStates(ctx)
			So(forward["42003"].TotalVotes, ShouldEqual, 100)

			svc.Derive(ctx, 25)
			back := svc.CountyStates(ctx)

			Convey("Then the earlier view is fully rederived", func() {
				So(back["42001"].TotalVotes, ShouldEqual, 30)
				So(back["42003"].TotalVotes, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Overrides(t *testing.T) {
	Convey("Given a scenario with frames around an override", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(40, 60),
		}})
		svc.Derive(ctx, 10)

		dem, gop := int64(70), int64(30)

		Convey("When a county is manually overridden", func() {
			st, err := svc.SetManualOverride(ctx, "42001", model.OverridePatch{
				DemVotes: &dem, GopVotes: &gop,
			})
			So(err, ShouldBeNil)
			So(st.ManualOverride, ShouldBeTrue)
			So(st.TotalVotes, ShouldEqual, 100)
			So(svc.IsOverridden(ctx, "42001"), ShouldBeTrue)

			Convey("Then the very next aggregate reflects it without a seek", func() {
				nat, err := svc.Aggregate(ctx, "national")
				So(err, ShouldBeNil)
				So(nat.DemVotes, ShouldEqual, 70)
				So(nat.GopVotes, ShouldEqual, 30)
			})

			Convey("And the override survives forward and backward seeks", func() {
				svc.Derive(ctx, 60)
				st, _ := svc.County(ctx, "42001")
				So(st.DemVotes, ShouldEqual, 70)
				So(st.ManualOverride, ShouldBeTrue)

				svc.Derive(ctx, 0)
				st, _ = svc.County(ctx, "42001")
				So(st.DemVotes, ShouldEqual, 70)
				So(st.ManualOverride, ShouldBeTrue)
			})

			Convey("And clearing it rederives from the buffer", func() {
				So(svc.ClearOverride(ctx, "42001"), ShouldBeTrue)
				st, _ := svc.County(ctx, "42001")
				So(st.DemVotes, ShouldEqual, 40)
				So(st.ManualOverride, ShouldBeFalse)
				So(svc.IsOverridden(ctx, "42001"), ShouldBeFalse)
			})

			Convey("And a scenario reset drops the override", func() {
				So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
				So(svc.IsOverridden(ctx, "42001"), ShouldBeFalse)
				So(svc.Overridden(ctx), ShouldBeEmpty)
			})
		})

		Convey("When an override is invalid", func() {
			neg := int64(-5)
			_, err := svc.SetManualOverride(ctx, "42001", model.OverridePatch{DemVotes: &neg})
			So(errors.Is(err, model.ErrNegativeVotes), ShouldBeTrue)
			So(svc.IsOverridden(ctx, "42001"), ShouldBeFalse)
		})
	})
}

func TestService_MonotonicReporting(t *testing.T) {
	Convey("Given frames that only add votes over time", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		for i, pct := range []float64{10, 35, 60, 85, 100} {
			ts := float64((i + 1) * 10)
			svc.IngestFrame(ctx, model.Frame{Timestamp: ts, Counties: map[string]model.CountyUpdate{
				"42001": {DemVotes: int64(pct), GopVotes: int64(pct), TotalVotes: int64(2 * pct), ReportingPercent: pct},
			}})
		}

		Convey("Then reportingPercent never decreases under forward playback", func() {
			prev := -1.0
			for _, cursor := range []float64{0, 10, 20, 30, 45, 50, 120} {
				svc.Derive(ctx, cursor)
				st, _ := svc.County(ctx, "42001")
				So(st.ReportingPercent, ShouldBeGreaterThanOrEqualTo, prev)
				prev = st.ReportingPercent
			}
		})
	})
}

func TestService_NewsroomAndStream(t *testing.T) {
	Convey("Given a stream subscriber on a running scenario", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		updates, cancel := svc.Subscribe(ctx)
		defer cancel()

		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(20, 80),
			"42003": fullyReported(40, 160),
			"42005": fullyReported(60, 240),
		}})
		svc.Derive(ctx, 10)

		Convey("Then the derivation pushes a stream update", func() {
			var got service.StreamUpdate
			select {
			case got = <-updates:
			default:
				t.Fatal("no stream update after derivation")
			}
			So(got.Snapshot.National.TotalVotes, ShouldEqual, 600)
		})

		Convey("And the newsroom calls the fully reported state", func() {
			events := svc.NewsroomEvents(ctx)
			So(len(events), ShouldBeGreaterThanOrEqualTo, 1)
			So(events[len(events)-1].Severity, ShouldEqual, model.SeveritySuccess)
			So(events[len(events)-1].Scope, ShouldEqual, "PA")
		})

		Convey("And identical rederivation emits no duplicate events", func() {
			before := len(svc.NewsroomEvents(ctx))
			svc.Derive(ctx, 10)
			So(len(svc.NewsroomEvents(ctx)), ShouldEqual, before)
		})
	})
}

func TestService_ReportingGroupInCallDetail(t *testing.T) {
	Convey("Given a scenario whose bootstrap carries reporting groups", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		sc := threeCountyScenario()
		sc.Reporting = &model.ReportingConfig{
			Groups: []model.ReportingGroup{
				{Label: "early wave", FIPS: []string{"42001"}},
			},
		}
		So(svc.LoadScenario(ctx, sc), ShouldBeNil)

		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(20, 80),
			"42003": fullyReported(40, 160),
			"42005": fullyReported(60, 240),
		}})
		svc.Derive(ctx, 10)

		Convey("Then the race-call detail names the state's reporting group", func() {
			events := svc.NewsroomEvents(ctx)
			So(len(events), ShouldBeGreaterThanOrEqualTo, 1)
			call := events[len(events)-1]
			So(call.Severity, ShouldEqual, model.SeveritySuccess)
			So(call.Detail, ShouldContainSubstring, "Reporting group: early wave.")
		})

		Convey("And a rebootstrap without groups drops the label again", func() {
			So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
			svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
				"42001": fullyReported(20, 80),
				"42003": fullyReported(40, 160),
				"42005": fullyReported(60, 240),
			}})
			svc.Derive(ctx, 10)
			events := svc.NewsroomEvents(ctx)
			So(len(events), ShouldBeGreaterThanOrEqualTo, 1)
			So(events[len(events)-1].Detail, ShouldNotContainSubstring, "Reporting group")
		})
	})
}

func TestService_UnknownCountyFrames(t *testing.T) {
	Convey("Given a frame for a county outside the baseline", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(40, 60),
			"99999": fullyReported(10, 10),
		}})
		svc.Derive(ctx, 10)

		Convey("Then it counts nationally but not in any state rollup", func() {
			nat, err := svc.Aggregate(ctx, "national")
			So(err, ShouldBeNil)
			So(nat.TotalVotes, ShouldEqual, 120)

			pa, err := svc.Aggregate(ctx, "PA")
			So(err, ShouldBeNil)
			So(pa.TotalVotes, ShouldEqual, 100)
		})
	})
}

func TestService_InvariantCorrection(t *testing.T) {
	Convey("Given a frame where party sums exceed the total", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": {DemVotes: 70, GopVotes: 60, TotalVotes: 100, ReportingPercent: 100},
		}})
		svc.Derive(ctx, 10)

		Convey("Then the corrected state is displayable, not dropped", func() {
			st, ok := svc.County(ctx, "42001")
			So(ok, ShouldBeTrue)
			So(st.TotalVotes, ShouldEqual, 130)
			So(st.OtherVotes, ShouldEqual, 0)
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a loaded scenario", t, func() {
		ctx := context.Background()
		svc := startedService(ctx)
		defer svc.Stop()

		So(svc.LoadScenario(ctx, threeCountyScenario()), ShouldBeNil)
		svc.IngestFrame(ctx, model.Frame{Timestamp: 10, Counties: map[string]model.CountyUpdate{
			"42001": fullyReported(40, 60),
		}})

		stats := svc.GetStats()
		So(stats["started"], ShouldEqual, true)
		So(stats["scenario_id"], ShouldEqual, "ref-3")
		So(stats["counties"], ShouldEqual, 3)
		So(stats["buffered_frames"], ShouldEqual, 1)
	})
}
