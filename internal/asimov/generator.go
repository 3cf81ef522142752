package asimov

import (
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/ports"
)

// Build produces a dataset whose counts equal the model expectation at
// signal strength trueMu exactly, with no stochastic fluctuation. The
// template is cloned, never mutated. To leading order the test
// statistic of this dataset equals the median of the true sampling
// distribution, so a single deterministic evaluation stands in for a
// toy campaign when quoting expected sensitivity.
func Build(template ports.Dataset, trueMu float64) (ports.Dataset, error) {
	ds := template.Clone()
	if err := ds.FillAsimov(trueMu); err != nil {
		return nil, errors.Wrapf(err, "asimov fill of %q at mu=%v", template.Name(), trueMu)
	}
	return ds, nil
}
