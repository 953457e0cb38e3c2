package link

import (
	"context"

	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/omeka"
)

// Page is one batch of items from a PageSource
type Page struct {
	Number    int // 1-based
	Resources []omeka.Resource
}

// PageSource yields pages until the stream is exhausted.
// ok is false at end of stream and after any error.
type PageSource interface {
	Next(ctx context.Context) (page Page, ok bool, err error)
}

// ItemLister lists one page of items
type ItemLister interface {
	ListItems(ctx context.Context, q omeka.ItemQuery) ([]omeka.Resource, error)
}

// ItemPager pages through /api/items, optionally filtered to one item set.
// It keeps only the cursor; pages are handed to the caller and not retained.
type ItemPager struct {
	lister    ItemLister
	perPage   int
	itemSetID *int64

	page int  // last page returned
	done bool // end of stream or error seen
}

// NewItemPager creates a pager starting at page 1
func NewItemPager(lister ItemLister, perPage int, itemSetID *int64) *ItemPager {
	if perPage < 1 {
		perPage = 1
	}
	return &ItemPager{lister: lister, perPage: perPage, itemSetID: itemSetID}
}

// Next requests the next page. An empty page ends the stream without error.
func (p *ItemPager) Next(ctx context.Context) (Page, bool, error) {
	if p.done {
		return Page{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		p.done = true
		return Page{}, false, err
	}

	number := p.page + 1
	items, err := p.lister.ListItems(ctx, omeka.ItemQuery{
		Page:      number,
		PerPage:   p.perPage,
		ItemSetID: p.itemSetID,
	})
	if err != nil {
		p.done = true
		return Page{}, false, errors.Wrapf(err, "page %d", number)
	}
	if len(items) == 0 {
		p.done = true
		return Page{}, false, nil
	}

	p.page = number
	return Page{Number: number, Resources: items}, true, nil
}

// Pages returns the number of non-empty pages returned so far
func (p *ItemPager) Pages() int {
	return p.page
}
