package portal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var testSelectors = Selectors{
	State:    "#sess_state_code",
	District: "#sess_dist_code",
	Complex:  "#court_complex_code",
	Date:     "#causelist_date",
	Submit:   "#submit_btn",
	Results:  "#res_cause_list",
	Row:      "tr, div.causeListRow",
	NoData:   "#nodata",
}

type court struct {
	value string
	label string
}

type fakeDistrict struct {
	court
	complexes []court
}

type fakeState struct {
	court
	districts []fakeDistrict
}

var placeholder = Option{Value: "0", Label: "Select"}

var fakeCatalog = []fakeState{
	{
		court: court{"8", "Delhi"},
		districts: []fakeDistrict{
			{court{"1", "New Delhi"}, []court{{"1@2@3", "Tis Hazari Courts"}, {"4@5", "Patiala House Court Complex"}, {"6", "Rouse Avenue Court Complex"}}},
			{court{"2", "South East"}, []court{{"7", "Saket Courts"}}},
		},
	},
	{
		court: court{"1", "Maharashtra"},
		districts: []fakeDistrict{
			{court{"19", "Mumbai"}, []court{{"21", "Fort"}, {"22", "Dindoshi"}}},
			{court{"25", "Pune"}, []court{{"26", "Shivajinagar"}}},
		},
	},
}

// fakePortal is an in memory stand in for the cause-list page. Option lists
// reload asynchronously after a select changes, like the real page's ajax.
type fakePortal struct {
	// reloadDelay is how long a dependent select keeps its old options.
	reloadDelay time.Duration
	renderDelay time.Duration
	// results maps a complex value to the fixture rendered for it, complexes
	// without an entry render the no data marker.
	results map[string]string
	// hang blocks the named Session method until its context is done.
	hang string
	// rejectDate makes the date control discard typed input.
	rejectDate bool
	location   string
	// initialDistricts is what the district select holds before any state is
	// chosen, a previous lookup's leftovers for example.
	initialDistricts []Option

	acquired atomic.Int32
	closed   atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
}

func (p *fakePortal) Acquire(ctx context.Context) (Session, error) {
	if p.hang == "Acquire" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p.acquired.Add(1)
	s := &fakeSession{portal: p, selects: map[string][]Option{}, values: map[string]string{}}
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakePortal) lastSession() *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

type fakeSession struct {
	portal *fakePortal

	mu       sync.Mutex
	loaded   bool
	selects  map[string][]Option
	values   map[string]string
	selected []string
	date     string
	rendered string
	noData   bool
	closed   bool
}

func (s *fakeSession) block(ctx context.Context, method string) error {
	if s.portal.hang != method {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	err := s.block(ctx, "Navigate")
	if err != nil {
		return err
	}
	states := []Option{placeholder}
	for _, st := range fakeCatalog {
		states = append(states, Option{Value: st.value, Label: st.label})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.selects[testSelectors.State] = states
	s.selects[testSelectors.District] = append([]Option{placeholder}, s.portal.initialDistricts...)
	s.selects[testSelectors.Complex] = []Option{placeholder}
	return nil
}

func (s *fakeSession) Options(ctx context.Context, selector string) ([]Option, error) {
	err := s.block(ctx, "Options")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	options, ok := s.selects[selector]
	if !ok {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return append([]Option(nil), options...), nil
}

func (s *fakeSession) WaitOptionsChange(ctx context.Context, selector string, previous []Option) ([]Option, error) {
	err := s.block(ctx, "WaitOptionsChange")
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		options, err := s.Options(ctx, selector)
		if err != nil {
			return nil, err
		}
		if !sameOptions(options, previous) {
			return options, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// reload replaces the options of selector after the portal's delay.
func (s *fakeSession) reload(selector string, options []Option) {
	time.AfterFunc(s.portal.reloadDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.selects[selector] = append([]Option{placeholder}, options...)
	})
}

func (s *fakeSession) Select(ctx context.Context, selector, value string) error {
	err := s.block(ctx, "Select")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, o := range s.selects[selector] {
		if o.Value == value {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%s has no option %q", selector, value)
	}
	s.values[selector] = value
	s.selected = append(s.selected, selector+"="+value)

	switch selector {
	case testSelectors.State:
		for _, st := range fakeCatalog {
			if st.value != value {
				continue
			}
			var districts []Option
			for _, d := range st.districts {
				districts = append(districts, Option{Value: d.value, Label: d.label})
			}
			s.reload(testSelectors.District, districts)
		}
	case testSelectors.District:
		for _, st := range fakeCatalog {
			if st.value != s.values[testSelectors.State] {
				continue
			}
			for _, d := range st.districts {
				if d.value != value {
					continue
				}
				var complexes []Option
				for _, c := range d.complexes {
					complexes = append(complexes, Option{Value: c.value, Label: c.label})
				}
				s.reload(testSelectors.Complex, complexes)
			}
		}
	}
	return nil
}

func (s *fakeSession) FillDate(ctx context.Context, selector, value string) (string, error) {
	err := s.block(ctx, "FillDate")
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.portal.rejectDate {
		s.date = value
	}
	return s.date, nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	err := s.block(ctx, "Click")
	if err != nil {
		return err
	}
	s.mu.Lock()
	complexValue := s.values[testSelectors.Complex]
	s.mu.Unlock()

	fixture, ok := s.portal.results[complexValue]
	time.AfterFunc(s.portal.renderDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !ok {
			s.noData = true
			return
		}
		s.rendered = fixture
	})
	return nil
}

func (s *fakeSession) WaitAny(ctx context.Context, selectors ...string) (int, error) {
	err := s.block(ctx, "WaitAny")
	if err != nil {
		return -1, err
	}
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		rendered, noData := s.rendered != "", s.noData
		s.mu.Unlock()
		for i, sel := range selectors {
			if sel == testSelectors.Results && rendered {
				return i, nil
			}
			if sel == testSelectors.NoData && noData {
				return i, nil
			}
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *fakeSession) OuterHTML(ctx context.Context, selector string) (string, error) {
	err := s.block(ctx, "OuterHTML")
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if selector != testSelectors.Results || s.rendered == "" {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	return s.rendered, nil
}

func (s *fakeSession) Location(ctx context.Context) (string, error) {
	if s.portal.location == "" {
		return "https://services.ecourts.gov.in/ecourtindia_v6/?p=cause_list/", nil
	}
	return s.portal.location, nil
}

func (s *fakeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return []*http.Cookie{{Name: "PHPSESSID", Value: "fake-session"}}, nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.portal.closed.Add(1)
	}
	return nil
}

func fixture(name string) string {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		panic(err)
	}
	return string(contents)
}
