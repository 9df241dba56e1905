package mel

import "math"

func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

// filterBank builds numMels triangular filters over nfft/2+1 bins.
func filterBank(numMels, nfft, sr int, low, high float64) [][]float64 {
	half := nfft/2 + 1
	lo, hi := hzToMel(low), hzToMel(high)
	step := (hi - lo) / float64(numMels+1)

	edges := make([]int, numMels+2)
	for i := range edges {
		bin := int(math.Round(melToHz(lo+float64(i)*step) * float64(nfft) / float64(sr)))
		if bin > half-1 {
			bin = half - 1
		}
		if i > 0 && bin <= edges[i-1] {
			bin = edges[i-1] + 1
		}
		edges[i] = bin
	}

	bank := make([][]float64, numMels)
	for m := range bank {
		filt := make([]float64, half)
		l, c, r := edges[m], edges[m+1], edges[m+2]
		for k := l; k < c && k < half; k++ {
			filt[k] = float64(k-l) / float64(c-l)
		}
		for k := c; k <= r && k < half; k++ {
			filt[k] = float64(r-k) / float64(r-c)
		}
		bank[m] = filt
	}
	return bank
}

// fft is an in-place iterative radix-2 transform; len(re) must be a power of two.
func fft(re, im []float64) {
	n := len(re)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		ang := -2 * math.Pi / float64(size)
		wr, wi := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += size {
			cr, ci := 1.0, 0.0
			for k := 0; k < size/2; k++ {
				u, v := start+k, start+k+size/2
				tr := cr*re[v] - ci*im[v]
				ti := cr*im[v] + ci*re[v]
				re[v], im[v] = re[u]-tr, im[u]-ti
				re[u] += tr
				im[u] += ti
				cr, ci = cr*wr-ci*wi, cr*wi+ci*wr
			}
		}
	}
}
