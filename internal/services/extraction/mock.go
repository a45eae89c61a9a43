package extraction

import (
	"context"
	"fmt"
	"strings"
)

// MockFetcher renders a canned posting page instead of driving a
// browser. Mock pipeline runs use it so extraction still produces a
// parseable record without network access.
type MockFetcher struct{}

// FetchHTML returns a synthetic posting derived from the URL
func (MockFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	slug := url
	if idx := strings.LastIndex(slug, "/"); idx >= 0 {
		slug = slug[idx+1:]
	}
	if slug == "" {
		slug = "posting"
	}
	return fmt.Sprintf(`<html><body>
<h1 data-test="job-title">Mock posting %s</h1>
<div data-test="job-description"><p>Synthetic description for %s. Build a small Go service.</p></div>
<div data-test="budget">$1,000.00-$2,000.00</div>
<div data-test="skill"><span>Go</span></div>
<section data-test="about-client">
  <div><span>Total spent</span><span>$5K</span></div>
  <div><span>Hires</span><span>12 hires</span></div>
  <div class="payment-verified">Payment method verified</div>
</section>
</body></html>`, slug, slug), nil
}
