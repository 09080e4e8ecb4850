package report

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"time"
)

// Chart geometry in SVG user units.
const (
	chartWidth   = 1200
	chartHeight  = 600
	plotLeft     = 70
	plotTop      = 20
	plotWidth    = 760
	plotHeight   = 500
	legendLeft   = plotLeft + plotWidth + 30
	legendRowGap = 22
	xTicks       = 6
	yTicks       = 5
)

// palette is the "husl"-like set of line colours, cycled when there are more
// lines than colours.
var palette = []string{
	"#f77189", "#dc8932", "#ae9d31", "#77ab31", "#33b07a",
	"#36ada4", "#38a9c5", "#6e9bf4", "#cc7af4", "#f565cc",
}

// ChartSVG draws the series as a line chart of net votes over time with a
// legend titled "Meme Title". An empty series yields a chart with axes only.
func ChartSVG(s Series) []byte {
	var minT, maxT time.Time
	minV, maxV := math.MaxInt, math.MinInt
	for _, l := range s.Lines {
		for _, p := range l.Points {
			if minT.IsZero() || p.At.Before(minT) {
				minT = p.At
			}
			if p.At.After(maxT) {
				maxT = p.At
			}
			minV = min(minV, p.Net)
			maxV = max(maxV, p.Net)
		}
	}
	if minV > maxV {
		minV, maxV = 0, 1
	}
	if minV > 0 {
		minV = 0
	}
	if minV == maxV {
		maxV = minV + 1
	}
	span := maxT.Sub(minT)

	x := func(t time.Time) float64 {
		if span <= 0 {
			return plotLeft + plotWidth/2
		}
		return plotLeft + float64(t.Sub(minT))/float64(span)*plotWidth
	}
	y := func(v int) float64 {
		return plotTop + plotHeight - float64(v-minV)/float64(maxV-minV)*plotHeight
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d" font-family="sans-serif" font-size="12">`,
		chartWidth, chartHeight, chartWidth, chartHeight)
	b.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>`)

	// axes
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`, plotLeft, plotTop, plotLeft, plotTop+plotHeight)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`, plotLeft, plotTop+plotHeight, plotLeft+plotWidth, plotTop+plotHeight)

	for i := 0; i <= yTicks; i++ {
		v := minV + (maxV-minV)*i/yTicks
		yy := y(v)
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#e5e5e5"/>`, plotLeft, yy, plotLeft+plotWidth, yy)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" text-anchor="end" dominant-baseline="middle">%d</text>`, plotLeft-6, yy, v)
	}
	if !minT.IsZero() {
		n := xTicks
		if span <= 0 {
			n = 0
		}
		for i := 0; i <= n; i++ {
			t := minT
			if n > 0 {
				t = minT.Add(span * time.Duration(i) / time.Duration(n))
			}
			fmt.Fprintf(&b, `<text x="%.1f" y="%d" text-anchor="middle">%s</text>`,
				x(t), plotTop+plotHeight+18, html.EscapeString(t.Format("Jan 2, 3PM")))
		}
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle">crawled_at</text>`, plotLeft+plotWidth/2, plotTop+plotHeight+42)
	fmt.Fprintf(&b, `<text x="16" y="%d" text-anchor="middle" transform="rotate(-90 16 %d)">net votes</text>`, plotTop+plotHeight/2, plotTop+plotHeight/2)

	// lines
	colour := make(map[string]string, len(s.Legend))
	for i, title := range s.Legend {
		colour[title] = palette[i%len(palette)]
	}
	for _, l := range s.Lines {
		c := colour[l.Title]
		if len(l.Points) == 1 {
			p := l.Points[0]
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`, x(p.At), y(p.Net), c)
			continue
		}
		b.WriteString(`<polyline fill="none" stroke-width="2" stroke="` + c + `" points="`)
		for i, p := range l.Points {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.1f,%.1f", x(p.At), y(p.Net))
		}
		b.WriteString(`"/>`)
	}

	// legend
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-weight="bold">Meme Title</text>`, legendLeft, plotTop+12)
	for i, title := range s.Legend {
		yy := plotTop + 12 + (i+1)*legendRowGap
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="3"/>`,
			legendLeft, yy-4, legendLeft+20, yy-4, colour[title])
		fmt.Fprintf(&b, `<text x="%d" y="%d">%s</text>`, legendLeft+28, yy, html.EscapeString(truncate(title, 48)))
	}

	b.WriteString(`</svg>`)
	return b.Bytes()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
