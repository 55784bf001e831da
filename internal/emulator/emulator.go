// Package emulator generates realistic lost & found traffic against a
// CampusConnect server for demos and load tests.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/reconcile"
)

// Sample data for generating realistic reports
var (
	itemTitles = []string{
		"Blue Backpack",
		"Red Wallet",
		"Black Phone",
		"Keys with Campus Keychain",
		"Laptop in Black Sleeve",
		"Sunglasses",
		"Silver Watch",
		"Purple Umbrella",
		"Green Hoodie",
		"White Earbuds",
		"Calculus Textbook",
		"Student ID Card",
		"Water Bottle",
		"USB Stick",
		"Lab Coat",
	}

	itemDescriptions = []string{
		"Has a few pins on the front pocket",
		"Brown stitching, contains a library card",
		"Cracked screen protector, clear case",
		"Three keys and a bottle opener",
		"Sticker of a mountain on the lid",
		"In a hard black case",
		"Metal band, small scratch on the face",
		"Folding, floral pattern inside",
		"Size M, faculty logo on the back",
		"Charging case only, no earbuds",
		"Name written inside the cover",
		"Found face down near the entrance",
		"Steel, dented at the bottom",
		"32GB, labelled 'thesis'",
		"Name tag removed",
	}

	locations = []string{
		"Library - 2nd Floor",
		"Cafeteria",
		"Main Hall",
		"Gym Locker Room",
		"Lecture Room A1",
		"Bus Stop by the North Gate",
		"Computer Lab 3",
		"Student Union",
		"Parking Lot B",
		"Chemistry Building",
	}
)

// Emulator drives a reconciler with random user actions
type Emulator struct {
	rec    *reconcile.Reconciler
	owners []string

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an emulator acting as the given owners (at least one)
func New(rec *reconcile.Reconciler, owners []string, seed int64) *Emulator {
	if len(owners) == 0 {
		owners = []string{"demo@gmail.com"}
	}
	return &Emulator{
		rec:    rec,
		owners: owners,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (e *Emulator) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

func (e *Emulator) pick(values []string) string {
	return values[e.intn(len(values))]
}

// Stats counts what an emulation run did
type Stats struct {
	Reported int
	Claimed  int
	Deleted  int
	Failed   int
}

func (s *Stats) add(o Stats) {
	s.Reported += o.Reported
	s.Claimed += o.Claimed
	s.Deleted += o.Deleted
	s.Failed += o.Failed
}

// EmitReport reports a random found item
func (e *Emulator) EmitReport(ctx context.Context) (Stats, error) {
	idx := e.intn(len(itemTitles))
	owner := e.pick(e.owners)

	draft := reconcile.Draft{
		Title:       itemTitles[idx],
		Description: itemDescriptions[idx],
		Location:    e.pick(locations),
		Contact:     owner,
		Date:        time.Now().AddDate(0, 0, -e.intn(14)).Format(models.DateLayout),
		OwnerEmail:  owner,
	}

	item, err := e.rec.Report(ctx, draft)
	if err != nil {
		return Stats{Failed: 1}, fmt.Errorf("report %q: %w", draft.Title, err)
	}
	log.Info().Str("id", item.ID).Str("title", item.Title).Str("owner", owner).Msg("Emulated report")
	return Stats{Reported: 1}, nil
}

// EmitClaim claims a random active item, if there is one
func (e *Emulator) EmitClaim(ctx context.Context) (Stats, error) {
	var candidates []models.FoundItem
	for _, item := range e.rec.Active() {
		if !item.IsLocal() {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return e.EmitReport(ctx)
	}

	item := candidates[e.intn(len(candidates))]
	if err := e.rec.MarkDone(ctx, item.ID); err != nil {
		return Stats{Failed: 1}, fmt.Errorf("claim %s: %w", item.ID, err)
	}
	log.Info().Str("id", item.ID).Str("title", item.Title).Msg("Emulated claim")
	return Stats{Claimed: 1}, nil
}

// EmitDelete deletes a random item as its owner, if there is one
func (e *Emulator) EmitDelete(ctx context.Context) (Stats, error) {
	items := e.rec.Items()
	if len(items) == 0 {
		return e.EmitReport(ctx)
	}

	item := items[e.intn(len(items))]
	if err := e.rec.Delete(ctx, item.ID, item.OwnerEmail); err != nil {
		return Stats{Failed: 1}, fmt.Errorf("delete %s: %w", item.ID, err)
	}
	log.Info().Str("id", item.ID).Str("title", item.Title).Msg("Emulated delete")
	return Stats{Deleted: 1}, nil
}

// EmitRandom performs one random action, weighted towards reports
func (e *Emulator) EmitRandom(ctx context.Context) (Stats, error) {
	switch n := e.intn(10); {
	case n < 6:
		return e.EmitReport(ctx)
	case n < 9:
		return e.EmitClaim(ctx)
	default:
		return e.EmitDelete(ctx)
	}
}

// Burst performs count random actions with delay between them
func (e *Emulator) Burst(ctx context.Context, count int, delay time.Duration) (Stats, error) {
	log.Info().Int("count", count).Dur("delay", delay).Msg("Starting burst")

	var total Stats
	for i := 0; i < count; i++ {
		s, err := e.EmitRandom(ctx)
		total.add(s)
		if err != nil {
			log.Warn().Err(err).Int("event", i).Msg("Emulated action failed")
		}

		if delay > 0 && i < count-1 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	log.Info().Interface("stats", total).Msg("Burst complete")
	return total, nil
}

// RunContinuous performs random actions at random intervals until ctx ends
func (e *Emulator) RunContinuous(ctx context.Context, minDelay, maxDelay time.Duration) Stats {
	if maxDelay <= minDelay {
		maxDelay = minDelay + time.Millisecond
	}
	log.Info().Dur("min", minDelay).Dur("max", maxDelay).Msg("Starting continuous emulation")

	var total Stats
	for {
		delay := minDelay + time.Duration(e.intn(int(maxDelay-minDelay)))
		select {
		case <-ctx.Done():
			log.Info().Interface("stats", total).Msg("Stopping emulation")
			return total
		case <-time.After(delay):
		}

		s, err := e.EmitRandom(ctx)
		total.add(s)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Emulated action failed")
		}
	}
}

// Stress fires perSecond random actions per second for duration
func (e *Emulator) Stress(ctx context.Context, duration time.Duration, perSecond int) (Stats, error) {
	if perSecond <= 0 {
		return Stats{}, errors.New("events per second must be positive")
	}
	log.Info().Int("per_second", perSecond).Dur("duration", duration).Msg("Starting stress test")

	ticker := time.NewTicker(time.Second / time.Duration(perSecond))
	defer ticker.Stop()
	timeout := time.After(duration)

	var mu sync.Mutex
	var wg sync.WaitGroup
	var total Stats

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return total, ctx.Err()
		case <-timeout:
			wg.Wait()
			log.Info().Interface("stats", total).Msg("Stress test complete")
			return total, nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := e.EmitRandom(ctx)
				if err != nil {
					log.Debug().Err(err).Msg("Stress action failed")
				}
				mu.Lock()
				total.add(s)
				mu.Unlock()
			}()
		}
	}
}

// Flow walks one item through its whole life: report, claim, delete
func (e *Emulator) Flow(ctx context.Context) error {
	log.Info().Msg("Step 1: a student reports a found item")
	if _, err := e.EmitReport(ctx); err != nil {
		return err
	}

	items := e.rec.Items()
	if len(items) == 0 {
		return errors.New("reported item is not cached")
	}
	item := items[0]

	log.Info().Str("id", item.ID).Msg("Step 2: the owner picks it up")
	if err := e.rec.MarkDone(ctx, item.ID); err != nil {
		return fmt.Errorf("claim %s: %w", item.ID, err)
	}

	log.Info().Str("id", item.ID).Msg("Step 3: the reporter removes the listing")
	if err := e.rec.Delete(ctx, item.ID, item.OwnerEmail); err != nil {
		return fmt.Errorf("delete %s: %w", item.ID, err)
	}

	log.Info().Msg("Flow complete")
	return nil
}
