package source

import (
	"context"

	"orderbridge/internal/model"
)

const productsQuery = `query Products($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on Product {
      id
      title
      handle
      vendor
      productType
      tags
      featuredImage { url }
    }
  }
}`

type productNode struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Handle        string   `json:"handle"`
	Vendor        string   `json:"vendor"`
	ProductType   string   `json:"productType"`
	Tags          []string `json:"tags"`
	FeaturedImage *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
}

// FetchProducts resolves product keys with a single batched nodes query. Keys the
// catalog does not know are simply missing from the result.
func (c *Client) FetchProducts(ctx context.Context, ids []string) (map[string]*model.ProductSnapshot, error) {
	out := map[string]*model.ProductSnapshot{}
	seen := make(map[string]bool, len(ids))
	batch := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		batch = append(batch, id)
	}
	if len(batch) == 0 {
		return out, nil
	}

	var data struct {
		Nodes []*productNode `json:"nodes"`
	}
	if err := c.graphql(ctx, productsQuery, map[string]any{"ids": batch}, &data); err != nil {
		return nil, err
	}
	for _, n := range data.Nodes {
		// null for unknown ids; empty object for non-product nodes
		if n == nil || n.ID == "" || !seen[n.ID] {
			continue
		}
		snap := &model.ProductSnapshot{
			ID:          n.ID,
			Title:       n.Title,
			Handle:      n.Handle,
			Vendor:      n.Vendor,
			ProductType: n.ProductType,
			Tags:        n.Tags,
		}
		if n.FeaturedImage != nil {
			snap.ImageURL = n.FeaturedImage.URL
		}
		out[n.ID] = snap
	}
	return out, nil
}
