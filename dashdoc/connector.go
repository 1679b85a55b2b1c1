package dashdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/config"
)

const (
	EntityTransports = "transports"
	EntityCompanies  = "companies"
	EntityContacts   = "contacts"
	EntityVehicles   = "vehicles"
	EntityTrailers   = "trailers"
	EntityTruckers   = "truckers"
	EntityInvoices   = "invoices"
)

// Statuses excluded from transport syncs unless the caller overrides them.
var DefaultExcludedStatuses = []string{"cancelled", "declined"}

// FetchOptions narrows one entity listing.
type FetchOptions struct {
	Limit            int
	DaysToSync       int
	Tag              string
	ExcludedStatuses []string
	CarriersOnly     bool
}

// FetchStats describes how a FetchAll loop ended.
type FetchStats struct {
	Pages     int
	Reported  int
	Fetched   int
	Truncated bool
	FailedOn  int
}

func entityPath(entityType string) (string, error) {
	switch entityType {
	case EntityTransports:
		return "/transports/", nil
	case EntityCompanies:
		return "/companies/", nil
	case EntityContacts:
		return "/contacts/", nil
	case EntityVehicles:
		return "/vehicles/", nil
	case EntityTrailers:
		return "/trailers/", nil
	case EntityTruckers:
		return "/manager-truckers/", nil
	case EntityInvoices:
		return "/invoices/", nil
	default:
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
}

func buildParams(entityType string, opts FetchOptions) url.Values {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("page_size", strconv.Itoa(opts.Limit))
	}

	switch entityType {
	case EntityTransports:
		excluded := opts.ExcludedStatuses
		if excluded == nil {
			excluded = DefaultExcludedStatuses
		}
		if len(excluded) > 0 {
			params.Set("status__not_in", strings.Join(excluded, ","))
		}
		if opts.DaysToSync > 0 {
			since := time.Now().AddDate(0, 0, -opts.DaysToSync).UTC().Format("2006-01-02")
			params.Set("created__gte", since)
		}
		if opts.Tag != "" {
			params.Set("tags__name", opts.Tag)
		}
	case EntityCompanies:
		if opts.CarriersOnly {
			params.Set("is_carrier", "true")
		}
	}
	return params
}

// FetchPage fetches one page of one entity type. pageURL, when non-empty, is
// the upstream "next" link and takes precedence over the computed query.
func (c *Client) FetchPage(ctx context.Context, entityType string, opts FetchOptions, pageURL string) (*Page, error) {
	path, err := entityPath(entityType)
	if err != nil {
		return nil, err
	}
	return c.getPage(ctx, path, buildParams(entityType, opts), pageURL)
}

// FetchAll drains the paginated listing for one entity type.
//
// The loop continues only while the upstream reports a next page AND the
// accumulated count is below the reported total; the second condition defends
// against APIs that keep handing out "next" links past their own total. A
// page-fetch error stops the loop and returns everything gathered so far
// together with the error, so the caller can keep the partial result. Hitting
// the page cap with more data remaining logs a warning and flags Truncated.
func (c *Client) FetchAll(ctx context.Context, entityType string, opts FetchOptions) ([]json.RawMessage, FetchStats, error) {
	logger := config.GetLogger()
	stats := FetchStats{}
	var results []json.RawMessage

	pageURL := ""
	for page := 1; ; page++ {
		resp, err := c.FetchPage(ctx, entityType, opts, pageURL)
		if err != nil {
			stats.FailedOn = page
			stats.Fetched = len(results)
			return results, stats, fmt.Errorf("fetch %s page %d: %w", entityType, page, err)
		}

		stats.Pages = page
		stats.Reported = resp.Count
		results = append(results, resp.Results...)

		hasNext := resp.Next != nil && *resp.Next != ""
		if !hasNext || len(results) >= resp.Count {
			break
		}

		if page >= c.maxPages {
			stats.Truncated = true
			logger.WithFields(logrus.Fields{
				"module":   "dashdoc",
				"entity":   entityType,
				"pages":    page,
				"fetched":  len(results),
				"reported": resp.Count,
			}).Warn("page cap reached before upstream was drained; data may be incomplete")
			break
		}

		pageURL = *resp.Next
		if c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				stats.Fetched = len(results)
				return results, stats, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}
	}

	stats.Fetched = len(results)
	return results, stats, nil
}
