package blog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/celerix-dev/celerix-web/pkg/entity"
)

type Sponsor struct {
	entity.Base

	Name        string
	Amount      decimal.Decimal
	RenewalDate time.Time
}

var Sponsors = entity.Register("sponsors", func() *Sponsor { return &Sponsor{} },
	entity.Value("name", func(s *Sponsor) *string { return &s.Name }),
	entity.Decimal("amount", func(s *Sponsor) *decimal.Decimal { return &s.Amount }),
	entity.Time("renewalDate", func(s *Sponsor) *time.Time { return &s.RenewalDate }),
)

func NewSponsor(data entity.Data) (*Sponsor, error) {
	return Sponsors.New(data)
}

func (s *Sponsor) Set(data entity.Data) (*Sponsor, error) {
	return Sponsors.Set(s, data)
}

// Total sums the sponsorship amounts.
func Total(sponsors []*Sponsor) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range sponsors {
		sum = sum.Add(s.Amount)
	}
	return sum
}
