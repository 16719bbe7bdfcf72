package bot

const (
	helpMessage = `Commands:
/start - subscribe this chat to alerts
/subscribe, /unsubscribe - toggle alerts for this chat
/id - show this chat's id
/status - show filters, schedule and tracking state
/trade [N] - push up to N qualifying tokens from the mirror now
/mirror - mirror statistics
/scrape <url> - resolve handles behind an X profile, post or community
/handles - followed-accounts file summary`

	noMatchesMessage  = "(trade) no matches with current filters."
	errorMessage      = "Oops! Something went wrong. Please try again."
	scraperOffMessage = "Social scraper is disabled."
)
