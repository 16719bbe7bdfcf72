package alerts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mint-radar/agent/internal/social"
	"mint-radar/shared/notifications"
	"mint-radar/shared/types"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	maxCaptionRunes   = 1000
	truncatedRunes    = 970
	maxFollowedLinks  = 20
	maxExtraLinks     = 15
	mintPreviewLength = 20
)

var (
	printer = message.NewPrinter(language.English)
	one     = decimal.NewFromInt(1)
)

// Card is everything an alert message renders.
type Card struct {
	Snapshot  types.TokenSnapshot
	FirstTime bool
	FirstMcap float64
	Social    social.Classification
	Now       time.Time
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func usd(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

func price(s types.TokenSnapshot) string {
	p := s.PriceUSD
	if p.LessThan(one) {
		return "$" + p.StringFixed(8)
	}
	return printer.Sprintf("$%.4f", p.InexactFloat64())
}

// PercentChange formats the change from first to current, or n/a without a baseline.
func PercentChange(first, current float64) string {
	if first <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", (current-first)/first*100)
}

func handleLinks(handles []string, limit int) string {
	if len(handles) == 0 {
		return "—"
	}
	shown := handles
	if len(shown) > limit {
		shown = shown[:limit]
	}
	links := make([]string, len(shown))
	for i, h := range shown {
		links[i] = fmt.Sprintf(`<a href="https://x.com/%s">@%s</a>`, h, h)
	}
	out := strings.Join(links, ", ")
	if rest := len(handles) - len(shown); rest > 0 {
		out += fmt.Sprintf(" ... +%d more", rest)
	}
	return out
}

// Caption renders the HTML alert text, truncated to fit a media caption.
func Caption(c Card) string {
	s := c.Snapshot
	header := "🧊"
	if c.FirstTime {
		header = "🔥"
	}
	name := s.Name
	if name == "" {
		name = "Unknown"
	}

	current := s.MarketCap()
	circle := "🔴"
	if c.FirstMcap > 0 && current >= c.FirstMcap {
		circle = "🟢"
	}

	mint := s.TokenID
	if len(mint) > mintPreviewLength {
		mint = mint[:mintPreviewLength] + "..."
	}

	age := "n/a"
	if mins, ok := s.AgeMinutes(c.Now); ok {
		age = fmt.Sprintf("%d min", int(mins))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", header, escapeHTML(name))
	fmt.Fprintf(&b, "🏦 <b>First Mcap:</b> 🔵 %s\n", usd(c.FirstMcap))
	fmt.Fprintf(&b, "🏦 <b>Current Mcap:</b> %s %s <b>(%s)</b>\n", circle, usd(current), PercentChange(c.FirstMcap, current))
	fmt.Fprintf(&b, "🖨️ <b>Mint:</b> <code>%s</code>\n", escapeHTML(mint))
	fmt.Fprintf(&b, "💧 <b>Liquidity:</b> %s\n", usd(s.Liquidity()))
	fmt.Fprintf(&b, "💵 <b>Price:</b> %s\n", price(s))
	fmt.Fprintf(&b, "📈 <b>Vol 24h:</b> %s\n", usd(s.Volume24h()))
	fmt.Fprintf(&b, "⏱️ <b>Age:</b> %s\n", age)
	fmt.Fprintf(&b, "\n👥 <b>Followed by:</b> %s", handleLinks(c.Social.Followed, maxFollowedLinks))
	if len(c.Social.Extras) > 0 {
		fmt.Fprintf(&b, "\n➕ <b>Extras:</b> %s", handleLinks(c.Social.Extras, maxExtraLinks))
	}

	out := b.String()
	if utf8.RuneCountInString(out) > maxCaptionRunes {
		out = string([]rune(out)[:truncatedRunes]) + " …"
	}
	return out
}

// Buttons builds the link keyboard of an alert.
func Buttons(chain string, s types.TokenSnapshot) notifications.Keyboard {
	xURL := s.XURL
	if xURL == "" && s.XHandle != "" {
		xURL = "https://x.com/" + s.XHandle
	}
	if xURL == "" {
		xURL = "https://x.com/"
	}
	return notifications.Keyboard{
		{
			{Text: "Dexscreener", URL: fmt.Sprintf("https://dexscreener.com/%s/%s", chain, s.PairAddress)},
			{Text: "Axiom", URL: fmt.Sprintf("https://axiom.trade/meme/%s", s.PairAddress)},
		},
		{
			{Text: "GMGN", URL: fmt.Sprintf("https://gmgn.ai/sol/token/%s", s.TokenID)},
			{Text: "X", URL: xURL},
		},
	}
}
