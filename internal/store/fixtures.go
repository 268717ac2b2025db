package store

import "time"

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FixtureBooks returns the seed catalogue, in load order.
func FixtureBooks() []*Book {
	return []*Book{
		{
			ISBN:      "0-571-05686-5",
			Title:     "Lord of the Flies",
			Published: date(1954, time.September, 17),
			Authors:   []string{"William Golding"},
		},
		{
			ISBN:      "0-582-53008-3",
			Title:     "Animal Farm",
			Published: date(1945, time.August, 17),
			Authors:   []string{"George Orwell"},
		},
	}
}

// FixtureAuthors returns the authors referenced by FixtureBooks.
func FixtureAuthors() []*Author {
	return []*Author{
		{
			Name:       "William Golding",
			BornName:   "William Gerald Golding",
			BirthDate:  date(1911, time.September, 19),
			BirthPlace: "Newquay, Cornwall, England",
		},
		{
			Name:       "George Orwell",
			BornName:   "Eric Arthur Blair",
			BirthDate:  date(1903, time.June, 25),
			BirthPlace: "Motihari, Bengal Presidency, British India",
		},
	}
}

// NewFixtureMemory returns a Memory store seeded with the fixtures.
func NewFixtureMemory() *Memory {
	return NewMemory(FixtureBooks(), FixtureAuthors())
}
