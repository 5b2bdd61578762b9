// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package tmdb

// Movie is a movie entry as returned by TMDB list endpoints
// (search, discover, similar, recommendations, trending).
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"` // "2006-03-17", may be empty
	GenreIDs    []int64 `json:"genre_ids"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int64   `json:"vote_count"`
}

// MovieList is the paged wrapper around list results.
type MovieList struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Genre is one entry of the genre catalog.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GenreList is the /genre/movie/list response.
type GenreList struct {
	Genres []Genre `json:"genres"`
}

// CastMember is one acting credit, ordered by billing.
type CastMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CrewMember is one crew credit.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Credits holds the cast and crew of a movie.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// MovieDetail is the full movie record with credits appended
// (append_to_response=credits).
type MovieDetail struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Genres      []Genre `json:"genres"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	Runtime     int     `json:"runtime"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int64   `json:"vote_count"`
	Credits     Credits `json:"credits"`
}

// Directors returns the names of crew members credited as Director.
func (d *MovieDetail) Directors() []string {
	var out []string
	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			out = append(out, c.Name)
		}
	}
	return out
}

// TopCast returns up to n cast names in billing order.
func (d *MovieDetail) TopCast(n int) []string {
	cast := d.Credits.Cast
	if len(cast) > n {
		cast = cast[:n]
	}
	out := make([]string, 0, len(cast))
	for _, c := range cast {
		out = append(out, c.Name)
	}
	return out
}

// GenreNames returns the genre names of the detail record.
func (d *MovieDetail) GenreNames() []string {
	out := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		out = append(out, g.Name)
	}
	return out
}

// Person is a person entry from /search/person.
type Person struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

// PersonList is the paged wrapper around person search results.
type PersonList struct {
	Page    int      `json:"page"`
	Results []Person `json:"results"`
}
