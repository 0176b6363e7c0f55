package report

import "sort"

// KPI holds the dashboard headline numbers.
type KPI struct {
	TotalStations int64   `json:"total_stations"`
	HSDVolume     float64 `json:"hsd_volume"`
	ULG95Volume   float64 `json:"ulg95_volume"`
	ULR91Volume   float64 `json:"ulr91_volume"`
}

// ChartPoint is one labelled value of a chart series.
type ChartPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Charts holds the dashboard chart series.
type Charts struct {
	SalesByPayment  []ChartPoint `json:"sales_by_payment"`
	VolumeByProduct []ChartPoint `json:"volume_by_product"`
}

// Dashboard is the aggregated dashboard payload.
type Dashboard struct {
	KPI    KPI    `json:"kpi"`
	Charts Charts `json:"charts"`
}

// Summarize aggregates sales into dashboard KPIs and chart series.
// Payment counts lines per method; product volumes group untracked materials under "Other".
func Summarize(sales []Sale, totalStations int64) Dashboard {
	out := Dashboard{KPI: KPI{TotalStations: totalStations}}
	payments := map[string]float64{}
	products := map[string]float64{}
	for _, s := range sales {
		switch s.MatID {
		case MatHSD:
			out.KPI.HSDVolume += s.TotalVolume
		case MatULG95:
			out.KPI.ULG95Volume += s.TotalVolume
		case MatULR91:
			out.KPI.ULR91Volume += s.TotalVolume
		}
		payment := s.Payment
		if payment == "" {
			payment = "Unknown"
		}
		payments[payment]++

		product := MaterialName(s.MatID)
		if product == UnknownMaterial {
			product = "Other"
		}
		products[product] += s.TotalVolume
	}
	out.Charts.SalesByPayment = toPoints(payments)
	out.Charts.VolumeByProduct = toPoints(products)
	return out
}

func toPoints(m map[string]float64) []ChartPoint {
	out := make([]ChartPoint, 0, len(m))
	for name, value := range m {
		out = append(out, ChartPoint{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
