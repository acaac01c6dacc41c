package tmdb

import (
	"context"
	"fmt"
)

// Similar lists titles the catalog considers similar to id.
func (c *Client) Similar(ctx context.Context, id int) ([]RelatedMovie, error) {
	return c.related(ctx, fmt.Sprintf("/movie/%d/similar", id))
}

// Recommendations lists titles the catalog recommends alongside id.
func (c *Client) Recommendations(ctx context.Context, id int) ([]RelatedMovie, error) {
	return c.related(ctx, fmt.Sprintf("/movie/%d/recommendations", id))
}

func (c *Client) related(ctx context.Context, path string) ([]RelatedMovie, error) {
	var resp searchResponse
	if err := c.getWithRetry(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	movies := make([]RelatedMovie, 0, len(resp.Results))
	for _, r := range resp.Results {
		movies = append(movies, RelatedMovie{ID: r.ID, Title: r.Title, Year: yearOf(r)})
	}
	return movies, nil
}
