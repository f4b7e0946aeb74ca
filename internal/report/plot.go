package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/verte-zerg/ultrasplit/internal/model"
)

const (
	minBarWidth         = 10
	barRune             = "█"
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var barColors = []string{
	"\x1b[36m",
	"\x1b[34m",
}

// PlotHistogram renders one horizontal bar per hour bucket. Bars are scaled
// to the busiest hour. A zero width uses the terminal width.
func PlotHistogram(w io.Writer, title string, buckets []model.HistogramBucket, width int, forceColor bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(buckets) == 0 {
		_, err := fmt.Fprintln(w, "No finishers.")
		return err
	}

	maxCount := 0
	for _, b := range buckets {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	labelWidth := len(strconv.Itoa(buckets[len(buckets)-1].Hour)) + 1
	countWidth := len(strconv.Itoa(maxCount))
	if width <= 0 {
		width = terminalWidth()
	}
	barWidth := BarWidthFor(width, labelWidth, countWidth)
	useColor := shouldUseColor(w, forceColor)

	for _, b := range buckets {
		n := barLength(b.Count, maxCount, barWidth)
		bar := strings.Repeat(barRune, n)
		if useColor && n > 0 {
			bar = barColors[b.Hour%len(barColors)] + bar + colorReset
		}
		line := fmt.Sprintf("%*s%s%s", labelWidth, strconv.Itoa(b.Hour)+"h", axisSeparator, bar)
		if b.Count > 0 {
			line += " " + strconv.Itoa(b.Count)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// BarWidthFor computes the longest bar that fits within the total width next
// to the hour label and the count.
func BarWidthFor(totalWidth, labelWidth, countWidth int) int {
	if totalWidth <= 0 {
		return minBarWidth
	}
	barWidth := totalWidth - labelWidth - displayWidth(axisSeparator) - countWidth - 1
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	return barWidth
}

func barLength(count, maxCount, barWidth int) int {
	if count <= 0 || maxCount <= 0 {
		return 0
	}
	n := (count*barWidth + maxCount - 1) / maxCount
	if n < 1 {
		n = 1
	}
	if n > barWidth {
		n = barWidth
	}
	return n
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
