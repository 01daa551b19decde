package portal

// Selectors are CSS selectors for the cause-list page. The defaults are loose
// attribute matches since the portal renames ids between releases.
type Selectors struct {
	State    string `json:"state"`
	District string `json:"district"`
	Complex  string `json:"complex"`
	Date     string `json:"date"`
	Submit   string `json:"submit"`
	// Results is the container the portal renders the judge list into.
	Results string `json:"results"`
	// Row is evaluated relative to Results.
	Row string `json:"row"`
	// NoData is the marker shown when nothing is published for the date.
	NoData string `json:"no_data"`
}

var DefaultSelectors = Selectors{
	State:    "select[id*='state'], select[name*='state']",
	District: "select[id*='district'], select[name*='district']",
	Complex:  "select[id*='court_complex'], select[id*='courtComplex'], select[name*='court_complex']",
	Date:     "input[id*='date'], input[name*='date'], input[placeholder*='Date']",
	Submit:   "button[type='submit'], input[type='submit'], button[title*='Search'], button[onclick*='submit']",
	Results:  "#res_cause_list, table.causelist, div.causeListResults, #cause_list_result",
	Row:      "tr, div.causeListRow, .cl-row",
	NoData:   "#nodata, .no-data, div.alert-danger, span.errormsg",
}

func (s Selectors) withDefaults() Selectors {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.State, DefaultSelectors.State)
	fill(&s.District, DefaultSelectors.District)
	fill(&s.Complex, DefaultSelectors.Complex)
	fill(&s.Date, DefaultSelectors.Date)
	fill(&s.Submit, DefaultSelectors.Submit)
	fill(&s.Results, DefaultSelectors.Results)
	fill(&s.Row, DefaultSelectors.Row)
	fill(&s.NoData, DefaultSelectors.NoData)
	return s
}
