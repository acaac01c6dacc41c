package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type detailsResponse struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	Runtime     int     `json:"runtime"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	Popularity  float64 `json:"popularity"`
	PosterPath  string  `json:"poster_path"`

	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`

	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`

	Keywords struct {
		Keywords []struct {
			Name string `json:"name"`
		} `json:"keywords"`
	} `json:"keywords"`

	ReleaseDates struct {
		Results []struct {
			CountryCode  string `json:"iso_3166_1"`
			ReleaseDates []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
}

// Details fetches the full record for a catalog id in one call, with the
// credits, keywords, and release dates sections appended.
func (c *Client) Details(ctx context.Context, id int) (*Movie, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits,keywords,release_dates")

	var resp detailsResponse
	if err := c.getWithRetry(ctx, fmt.Sprintf("/movie/%d", id), q, &resp); err != nil {
		return nil, err
	}
	return movieFromDetails(&resp), nil
}

func movieFromDetails(d *detailsResponse) *Movie {
	m := &Movie{
		ID:         d.ID,
		Title:      d.Title,
		Year:       yearFromDate(d.ReleaseDate),
		Overview:   d.Overview,
		Runtime:    d.Runtime,
		Rating:     d.VoteAverage,
		VoteCount:  d.VoteCount,
		Popularity: d.Popularity,
	}

	for _, g := range d.Genres {
		if g.Name != "" {
			m.Genres = append(m.Genres, g.Name)
		}
	}

	for _, crew := range d.Credits.Crew {
		if crew.Job == "Director" {
			m.Director = crew.Name
			break
		}
	}

	for i, cast := range d.Credits.Cast {
		if i == castLimit {
			break
		}
		m.Cast = append(m.Cast, cast.Name)
	}

	for _, k := range d.Keywords.Keywords {
		if k.Name != "" {
			m.Keywords = append(m.Keywords, k.Name)
		}
	}

	m.Certification = usCertification(d)

	if d.PosterPath != "" {
		m.PosterURL = posterBaseURL + d.PosterPath
	}
	return m
}

// usCertification returns the US certification, scanning each country's
// release list newest-entry-first since re-releases carry the current board
// rating.
func usCertification(d *detailsResponse) string {
	for _, country := range d.ReleaseDates.Results {
		if country.CountryCode != "US" {
			continue
		}
		for i := len(country.ReleaseDates) - 1; i >= 0; i-- {
			if cert := country.ReleaseDates[i].Certification; cert != "" {
				return cert
			}
		}
	}
	return ""
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
