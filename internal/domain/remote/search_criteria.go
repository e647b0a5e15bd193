package remote

import (
	"fmt"
	"net/url"
	"strings"
)

// Condition types understood by the remote search endpoint.
const (
	ConditionEq   = "eq"
	ConditionGt   = "gt"
	ConditionLike = "like"
	ConditionFrom = "from"
	ConditionTo   = "to"
)

// Filter is one field comparison inside a filter group.
type Filter struct {
	Field         string
	ConditionType string
	Value         string
}

// FilterGroup is a set of filters the remote API ORs together. Groups
// themselves are ANDed, which is why an "in" comparison expands into ORed
// filters within one group while a range expands into two groups.
type FilterGroup struct {
	Filters []Filter
}

// SearchCriteria describes one remote search request: filter groups, an
// optional field projection and pagination parameters.
type SearchCriteria struct {
	FilterGroups []FilterGroup
	// Fields is a projection list; []string{"total_count"} makes the remote
	// return only the count, which is how the engine sizes a range.
	Fields []string
	// PageSize is the remote page size; zero omits the parameter
	PageSize int
	// CurrentPage is the 1-based page to fetch; zero omits the parameter
	CurrentPage int
}

// NewSearchCriteria creates criteria with no filters. Encoding an empty
// criteria still emits a match-all group (id gt -1) because the remote
// endpoint rejects requests without any filter group.
func NewSearchCriteria() *SearchCriteria {
	return &SearchCriteria{}
}

// Eq adds an equality filter as its own group (ANDed with the rest)
func (c *SearchCriteria) Eq(field, value string) *SearchCriteria {
	return c.addGroup(Filter{Field: field, ConditionType: ConditionEq, Value: value})
}

// Gt adds a greater-than filter as its own group
func (c *SearchCriteria) Gt(field, value string) *SearchCriteria {
	return c.addGroup(Filter{Field: field, ConditionType: ConditionGt, Value: value})
}

// Like adds a like filter as its own group
func (c *SearchCriteria) Like(field, value string) *SearchCriteria {
	return c.addGroup(Filter{Field: field, ConditionType: ConditionLike, Value: value})
}

// Range adds an inclusive from/to range on one field. The remote protocol
// has no single range operator, so this becomes two ANDed groups. Empty
// bounds are skipped.
func (c *SearchCriteria) Range(field, from, to string) *SearchCriteria {
	if from != "" {
		c.addGroup(Filter{Field: field, ConditionType: ConditionFrom, Value: from})
	}
	if to != "" {
		c.addGroup(Filter{Field: field, ConditionType: ConditionTo, Value: to})
	}
	return c
}

// In adds a set-membership filter. The protocol ANDs groups and ORs filters
// within a group, so the values become ORed equality filters in one group.
func (c *SearchCriteria) In(field string, values ...string) *SearchCriteria {
	if len(values) == 0 {
		return c
	}
	group := FilterGroup{Filters: make([]Filter, 0, len(values))}
	for _, v := range values {
		group.Filters = append(group.Filters, Filter{Field: field, ConditionType: ConditionEq, Value: v})
	}
	c.FilterGroups = append(c.FilterGroups, group)
	return c
}

// WithFields sets the field projection
func (c *SearchCriteria) WithFields(fields ...string) *SearchCriteria {
	c.Fields = fields
	return c
}

// WithPage sets the pagination parameters
func (c *SearchCriteria) WithPage(page, pageSize int) *SearchCriteria {
	c.CurrentPage = page
	c.PageSize = pageSize
	return c
}

func (c *SearchCriteria) addGroup(f Filter) *SearchCriteria {
	c.FilterGroups = append(c.FilterGroups, FilterGroup{Filters: []Filter{f}})
	return c
}

// QueryValues encodes the criteria as the PHP-style bracketed query
// parameters the remote endpoint expects, e.g.
//
//	searchCriteria[filterGroups][0][filters][0][field]=state
//	searchCriteria[filterGroups][0][filters][0][condition_type]=eq
//	searchCriteria[filterGroups][0][filters][0][value]=processing
func (c *SearchCriteria) QueryValues() url.Values {
	values := url.Values{}

	groups := c.FilterGroups
	if len(groups) == 0 {
		groups = []FilterGroup{{Filters: []Filter{{Field: "id", ConditionType: ConditionGt, Value: "-1"}}}}
	}

	for gi, group := range groups {
		for fi, filter := range group.Filters {
			prefix := fmt.Sprintf("searchCriteria[filterGroups][%d][filters][%d]", gi, fi)
			values.Set(prefix+"[field]", filter.Field)
			values.Set(prefix+"[condition_type]", filter.ConditionType)
			values.Set(prefix+"[value]", filter.Value)
		}
	}

	if c.PageSize > 0 {
		values.Set("searchCriteria[pageSize]", fmt.Sprintf("%d", c.PageSize))
	}
	if c.CurrentPage > 0 {
		values.Set("searchCriteria[currentPage]", fmt.Sprintf("%d", c.CurrentPage))
	}
	if len(c.Fields) > 0 {
		values.Set("fields", strings.Join(c.Fields, ","))
	}

	return values
}

// Encode returns the criteria as a raw query string
func (c *SearchCriteria) Encode() string {
	return c.QueryValues().Encode()
}
