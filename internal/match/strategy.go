package match

import (
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// Strategy derives the probe queries of one cascade step from a record.
// A strategy with no queries for a record is skipped.
type Strategy interface {
	Name() models.Strategy
	Queries(rec models.InputRecord) []models.ProbeQuery
}

// DefaultStrategies is the cascade in priority order
func DefaultStrategies() []Strategy {
	return []Strategy{ISBNStrategy{}, TitleIndexStrategy{}, KeywordStrategy{}}
}

// ISBNStrategy looks the ISBN up in the keyword index
type ISBNStrategy struct{}

func (ISBNStrategy) Name() models.Strategy { return models.StrategyISBN }

func (ISBNStrategy) Queries(rec models.InputRecord) []models.ProbeQuery {
	if !rec.HasISBN() {
		return nil
	}
	return []models.ProbeQuery{{Strategy: models.StrategyISBN, Term: catalog.CleanISBN(rec.ISBN), Label: "isbn"}}
}

// TitleIndexStrategy browses the title index
type TitleIndexStrategy struct{}

func (TitleIndexStrategy) Name() models.Strategy { return models.StrategyTitleIndex }

func (TitleIndexStrategy) Queries(rec models.InputRecord) []models.ProbeQuery {
	title := textnorm.StripParens(rec.Title)
	if title == "" {
		return nil
	}
	return []models.ProbeQuery{{Strategy: models.StrategyTitleIndex, Term: title, Label: "title-index"}}
}

// KeywordStrategy runs a keyword search for "author title", then for the
// title alone
type KeywordStrategy struct{}

func (KeywordStrategy) Name() models.Strategy { return models.StrategyKeyword }

func (KeywordStrategy) Queries(rec models.InputRecord) []models.ProbeQuery {
	title := textnorm.StripParens(rec.Title)
	if title == "" {
		return nil
	}
	var out []models.ProbeQuery
	if author := strings.TrimSpace(rec.Author); author != "" {
		out = append(out, models.ProbeQuery{
			Strategy: models.StrategyKeyword,
			Term:     strings.TrimSpace(textnorm.Squeeze(author + " " + title)),
			Label:    "kw-author+title",
		})
	}
	return append(out, models.ProbeQuery{Strategy: models.StrategyKeyword, Term: title, Label: "kw-title-only"})
}
