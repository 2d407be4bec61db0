package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/sosharvest/models"
	"github.com/use-agent/sosharvest/simhash"
)

// ExtractTable finds the first table in document order with at least two
// rows and returns its non-empty data rows tagged with page. The first row is
// the header. found is false when no table qualifies.
func ExtractTable(rawHTML string, page int) (rows []models.ExtractedRow, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, false, fmt.Errorf("parse results page: %w", err)
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if t.Find("tr").Length() >= 2 {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, false, nil
	}

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		values := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			values = append(values, cellText(td))
		})
		if strings.TrimSpace(strings.Join(values, "")) == "" {
			return
		}
		rows = append(rows, models.ExtractedRow{Page: page, Columns: values})
	})
	return rows, true, nil
}

// nearRepeatBits is the fingerprint distance under which consecutive pages
// are logged as near repeats.
const nearRepeatBits = 3

// lineMark stands in for rendered line breaks while cell text is collected.
const lineMark = "\u2028"

// cellText returns the rendered text of a cell: <br> and block elements
// become newlines, other whitespace runs collapse to one space, and blank
// lines are dropped.
func cellText(td *goquery.Selection) string {
	td.Find("br").ReplaceWithHtml(lineMark)
	td.Find("p, div, li, tr").BeforeHtml(lineMark).AfterHtml(lineMark)

	var lines []string
	for _, line := range strings.Split(td.Text(), lineMark) {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// extract walks the result pages. Running out of tables, links or the page
// cap all end pagination normally.
func (s *Session) extract(ctx context.Context) error {
	s.setState(StateExtracting)
	s.pageNum = 1
	var (
		prevPrint uint64
		hasPrint  bool
	)

	for s.pageNum <= s.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return err
		}
		readCtx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
		rawHTML, err := s.page.HTML(readCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("read results page %d: %w", s.pageNum, err)
		}

		rows, found, err := ExtractTable(rawHTML, s.pageNum)
		if err != nil {
			return err
		}
		if !found {
			s.log.Info("no data table on page, stopping", "page", s.pageNum)
			break
		}

		if len(rows) > 0 {
			fp := simhash.FingerprintRows(rowColumns(rows))
			if hasPrint {
				dist := simhash.Distance(fp, prevPrint)
				if dist == 0 && s.opts.StopOnRepeatedPage {
					s.log.Warn("next page repeated the previous rows, stopping", "page", s.pageNum)
					s.pageNum--
					break
				}
				if simhash.Similar(fp, prevPrint, nearRepeatBits) {
					s.log.Warn("page rows nearly repeat the previous page", "page", s.pageNum, "distance", dist)
				} else {
					s.log.Debug("page fingerprint", "page", s.pageNum, "distance", dist)
				}
			}
			prevPrint, hasPrint = fp, true
		}

		for _, row := range rows {
			row.RunID = s.opts.RunID
			if err := s.dataset.PushData(ctx, row); err != nil {
				return models.NewHarvestError(models.ErrCodeStore, "failed to push extracted row", err)
			}
			s.total++
		}
		s.metrics.AddRows(len(rows))
		s.metrics.IncPage()
		s.log.Info("page extracted", "page", s.pageNum, "rows", len(rows), "total", s.total)

		if s.pageNum >= s.opts.MaxPages {
			s.log.Info("page cap reached", "max_pages", s.opts.MaxPages)
			break
		}
		more, err := s.nextPage(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		s.pageNum++
	}
	return ctx.Err()
}

// nextPage follows the "Next" link. A failed lookup or navigation means no
// further page is reachable; only cancellation of ctx is an error.
func (s *Session) nextPage(ctx context.Context) (bool, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	next, found, err := linkByText(lookupCtx, s.page, "Next")
	cancel()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || !found {
		return false, nil
	}
	if err := s.clickAndAwaitNavigation(ctx, next.Click); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.log.Warn("next page navigation failed, stopping", "page", s.pageNum, "error", err)
		return false, nil
	}
	return true, nil
}

func rowColumns(rows []models.ExtractedRow) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Columns
	}
	return out
}
