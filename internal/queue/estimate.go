package queue

import (
	"math"
	"time"
)

// WaitSample is one historical seating observation: a ticket that reached
// seated, with the timestamps needed to measure its wait.
type WaitSample struct {
	PartySize int
	CreatedAt time.Time
	SeatedAt  time.Time
}

const (
	SourceToday     = "today"
	SourceLast7Days = "last_7_days"

	historicalDays = 7

	// DefaultMinSample is the threshold the stricter settings surface
	// applies before trusting an average.
	DefaultMinSample = 5
)

// Estimate is a per-band wait prediction. Source labels the window the mean
// came from so callers can surface provenance.
type Estimate struct {
	Minutes int    `json:"minutes"`
	Source  string `json:"source"`
	Samples int    `json:"samples"`
}

type accum struct {
	total time.Duration
	count int
}

// Estimates computes the mean wait per band, rounded to the nearest minute.
// Samples created on the current calendar day (in loc) win; bands with no
// same-day sample fall back to the trailing seven full days. Bands with no
// qualifying sample in either window are absent from the result — a missing
// estimate is never zero. When minSamples is above 1, a band whose chosen
// window holds fewer samples than that is treated as unavailable rather than
// falling back to the other window.
func Estimates(samples []WaitSample, now time.Time, loc *time.Location, minSamples int) map[Band]Estimate {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	histStart := dayStart.AddDate(0, 0, -historicalDays)

	today := make(map[Band]*accum)
	hist := make(map[Band]*accum)

	for _, sample := range samples {
		wait := sample.SeatedAt.Sub(sample.CreatedAt)
		if wait <= 0 {
			// Clock skew or bad data; exclude entirely rather than clamp.
			continue
		}
		band, ok := ClassifyPartySize(sample.PartySize)
		if !ok {
			continue
		}
		created := sample.CreatedAt.In(loc)
		switch {
		case !created.Before(dayStart):
			addSample(today, band, wait)
		case !created.Before(histStart):
			addSample(hist, band, wait)
		}
	}

	estimates := make(map[Band]Estimate)
	for _, band := range Bands {
		acc, source := today[band], SourceToday
		if acc == nil || acc.count == 0 {
			acc, source = hist[band], SourceLast7Days
		}
		if acc == nil || acc.count == 0 || acc.count < minSamples {
			continue
		}
		estimates[band] = Estimate{
			Minutes: meanMinutes(acc.total, acc.count),
			Source:  source,
			Samples: acc.count,
		}
	}
	return estimates
}

func addSample(accs map[Band]*accum, band Band, wait time.Duration) {
	if accs[band] == nil {
		accs[band] = &accum{}
	}
	accs[band].total += wait
	accs[band].count++
}

func meanMinutes(total time.Duration, count int) int {
	mean := total.Minutes() / float64(count)
	return int(math.Round(mean))
}
