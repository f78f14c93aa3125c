package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zmb3/spotify/v2"
)

const progressBarWidth = 32

var styles = newPalette("#1DB954", "#FFFFFF", "#B3B3B3", "#FF4D4D", "#626262")

type palette struct {
	brand    lipgloss.Style
	title    lipgloss.Style
	subtle   lipgloss.Style
	err      lipgloss.Style
	help     lipgloss.Style
	label    lipgloss.Style
	explicit lipgloss.Style
	filled   lipgloss.Style
	empty    lipgloss.Style
	card     lipgloss.Style
}

func newPalette(brand, text, subtle, errColor, help string) palette {
	return palette{
		brand:    newBold(brand),
		title:    newBold(text),
		subtle:   newStyle(subtle),
		err:      newBold(errColor),
		help:     newStyle(help).Italic(true),
		label:    newStyle(subtle).Bold(true),
		explicit: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color(subtle)).Padding(0, 1),
		filled:   newStyle(brand),
		empty:    newStyle(help),
		card:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(brand)).Padding(1, 2),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// Render draws the whole screen for a state.
func Render(s State) string {
	switch {
	case s.IsInitialLoading:
		return styles.card.Render(styles.subtle.Render("Loading current track..."))
	case s.Error != "":
		return styles.card.Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.err.Render(s.Error),
			"",
			styles.help.Render("r retry • q quit"),
		))
	case s.Track() == nil:
		return styles.card.Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.title.Render("Nothing Currently Playing"),
			styles.subtle.Render("Start playing a track on Spotify to see it here!"),
			"",
			styles.help.Render("r refresh • q quit"),
		))
	}

	return styles.card.Render(renderTrack(s))
}

func renderTrack(s State) string {
	track := s.Track()

	header := styles.brand.Render("Now Playing")
	if s.IsPlaying() {
		header += " " + styles.brand.Render("▶")
	} else {
		header += " " + styles.subtle.Render("(paused)")
	}

	lines := []string{
		header,
		"",
		styles.title.Render(track.Name),
		styles.subtle.Render(ArtistNames(track.Artists)),
		styles.subtle.Render(track.Album.Name),
		"",
		ProgressBar(s.DisplayProgressMs, int(track.Duration), progressBarWidth),
		fmt.Sprintf("%s / %s", FormatTime(s.DisplayProgressMs), FormatTime(int(track.Duration))),
		"",
		styles.brand.Render("🎵 Join the Party: ") + string(track.URI),
		styles.help.Render("Open this link in your Spotify app"),
		"",
		metadataLine(track),
	}

	if art := AlbumArtURL(track); art != "" {
		lines = append(lines, styles.label.Render("Album Art: ")+styles.subtle.Render(art))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func metadataLine(track *spotify.FullTrack) string {
	parts := []string{
		styles.label.Render("Release Date: ") + ReleaseYear(track.Album.ReleaseDate),
		styles.label.Render("Popularity: ") + fmt.Sprintf("%d%%", int(track.Popularity)),
	}
	if track.Explicit {
		parts = append(parts, styles.explicit.Render("EXPLICIT"))
	}
	return strings.Join(parts, "   ")
}

// FormatTime renders milliseconds as m:ss. Zero and negative values are 0:00.
func FormatTime(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ProgressBar draws a fixed-width bar for progress out of duration.
func ProgressBar(progressMs, durationMs, width int) string {
	filled := 0
	if durationMs > 0 && progressMs > 0 {
		filled = progressMs * width / durationMs
	}
	if filled > width {
		filled = width
	}
	return styles.filled.Render(strings.Repeat("█", filled)) +
		styles.empty.Render(strings.Repeat("░", width-filled))
}

// ArtistNames joins artist names with ", ".
func ArtistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// ReleaseYear takes the year from a release date of any precision
// ("2013", "2013-05" or "2013-05-17").
func ReleaseYear(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

// AlbumArtURL is the first (largest) album image, if any.
func AlbumArtURL(track *spotify.FullTrack) string {
	if track == nil || len(track.Album.Images) == 0 {
		return ""
	}
	return track.Album.Images[0].URL
}
