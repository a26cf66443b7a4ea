// Package handlers contains the building blocks of the bot's HTTP surface:
// the Telegram webhook, readiness checks and the request middleware.
//
// # Readiness
//
// Checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("sessions", handlers.PingCheck(redisStore))
//	checker.AddCheck("ledger", handlers.PingCheck(pg))
//
// # Webhook
//
// The webhook verifies the X-Telegram-Bot-Api-Secret-Token header and hands
// the decoded update to the bot's per-user queues:
//
//	r.Method(http.MethodPost, "/webhook", handlers.NewWebhook(bot, secret, log))
package handlers
