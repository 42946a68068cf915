package contact_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a store with three slots", t, func() {
		store := contact.NewStore(3)
		So(store.Size(), ShouldEqual, 3)

		Convey("When nothing was recorded", func() {
			snap := store.Snapshot([]int{0, 1, 2})

			Convey("Then every slot is present but invalid", func() {
				So(len(snap), ShouldEqual, 3)
				So(snap[0].Valid, ShouldBeFalse)
				So(contact.IsFresh(snap[0], t0, contact.DefaultMaxAge), ShouldBeFalse)
			})
		})

		Convey("When a value is recorded twice", func() {
			store.Record(ctx, 1, 0.2, t0)
			store.Record(ctx, 1, 0.7, t0.Add(time.Second))

			Convey("Then the latest write wins", func() {
				snap := store.Snapshot([]int{1})
				So(snap[1].Value, ShouldEqual, 0.7)
				So(snap[1].Timestamp, ShouldEqual, t0.Add(time.Second))
				So(snap[1].Valid, ShouldBeTrue)
			})
		})

		Convey("When an out-of-range id is recorded", func() {
			store.Record(ctx, 3, 1, t0)
			store.Record(ctx, -1, 1, t0)

			Convey("Then it is dropped without panicking", func() {
				snap := store.Snapshot([]int{-1, 3})
				So(len(snap), ShouldEqual, 0)
			})
		})

		Convey("When a snapshot is modified", func() {
			store.Record(ctx, 0, 0.5, t0)
			snap := store.Snapshot([]int{0})
			snap[0] = model.Sample{Value: 99}

			Convey("Then the store is unaffected", func() {
				So(store.Snapshot([]int{0})[0].Value, ShouldEqual, 0.5)
			})
		})

		Convey("When writers and readers run concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						store.Record(ctx, j%3, float64(i), t0)
						_ = store.Snapshot([]int{0, 1, 2})
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every slot ends up valid", func() {
				for _, s := range store.Snapshot([]int{0, 1, 2}) {
					So(s.Valid, ShouldBeTrue)
				}
			})
		})
	})
}

func TestFreshness(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 500 * time.Millisecond

	Convey("Given a sample captured at t0", t, func() {
		sample := model.Sample{Value: 0.9, Timestamp: t0, Valid: true}

		Convey("Then it is fresh up to and including maxAge", func() {
			So(contact.IsFresh(sample, t0, maxAge), ShouldBeTrue)
			So(contact.IsFresh(sample, t0.Add(maxAge), maxAge), ShouldBeTrue)
			So(contact.IsFresh(sample, t0.Add(maxAge+time.Nanosecond), maxAge), ShouldBeFalse)
		})
	})

	Convey("Given a group snapshot", t, func() {
		ids := []int{0, 1, 2}
		snap := map[int]model.Sample{
			0: {Value: 0.9, Timestamp: t0, Valid: true},
			1: {Value: 0.5, Timestamp: t0, Valid: true},
			2: {Value: 0.5, Timestamp: t0, Valid: true},
		}

		Convey("When every point is fresh", func() {
			So(contact.AllFresh(snap, ids, t0.Add(100*time.Millisecond), maxAge), ShouldBeTrue)
		})

		Convey("When one point is stale the whole group is stale", func() {
			snap[2] = model.Sample{Value: 0.5, Timestamp: t0.Add(-time.Second), Valid: true}
			So(contact.AllFresh(snap, ids, t0.Add(100*time.Millisecond), maxAge), ShouldBeFalse)
		})

		Convey("When a point is missing from the snapshot", func() {
			delete(snap, 1)
			So(contact.AllFresh(snap, ids, t0, maxAge), ShouldBeFalse)
		})

		Convey("When the group has no points", func() {
			So(contact.AllFresh(snap, nil, t0, maxAge), ShouldBeFalse)
		})
	})
}
