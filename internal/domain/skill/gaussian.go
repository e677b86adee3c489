package skill

import "math"

// tiny guards divisions by a vanishing normal tail mass.
const tiny = 1e-300

func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func cdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// ppf is the inverse of cdf.
func ppf(p float64) float64 {
	return -math.Sqrt2 * math.Erfcinv(2*p)
}

// vWin is the mean correction for an outcome won by a scaled margin
// difference x against draw margin t.
func vWin(x, t float64) float64 {
	d := x - t
	denom := cdf(d)
	if denom < tiny {
		return -d
	}
	return pdf(d) / denom
}

// wWin is the variance correction matching vWin.
func wWin(x, t float64) float64 {
	d := x - t
	if cdf(d) < tiny {
		if x < 0 {
			return 1
		}
		return 0
	}
	v := vWin(x, t)
	return v * (v + d)
}

// vDraw is the mean correction for a drawn outcome.
func vDraw(x, t float64) float64 {
	ax := math.Abs(x)
	a, b := t-ax, -t-ax
	denom := cdf(a) - cdf(b)
	var v float64
	if denom < tiny {
		v = a
	} else {
		v = (pdf(b) - pdf(a)) / denom
	}
	if x < 0 {
		return -v
	}
	return v
}

// wDraw is the variance correction matching vDraw.
func wDraw(x, t float64) float64 {
	ax := math.Abs(x)
	a, b := t-ax, -t-ax
	denom := cdf(a) - cdf(b)
	if denom < tiny {
		return 1
	}
	v := vDraw(ax, t)
	return v*v + (a*pdf(a)-b*pdf(b))/denom
}
