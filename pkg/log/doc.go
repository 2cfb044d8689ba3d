/*
Package log provides structured logging for loadforge using zerolog.

A single global Logger instance is configured once via Init and then
handed out to components as child loggers carrying fixed fields
(component, user_id, pool_id, task_id) so that a user's or a pool's
log lines can be grep'd or queried as a group.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Str("task_id", taskID).Msg("action dispatched")

	userLog := log.WithUserID(fmt.Sprintf("%d", userID))
	userLog.Debug().Msg("think-time sleep")

Console output (default) is human-readable; JSONOutput switches to
line-delimited JSON for machine ingestion. Level filtering is global,
not per-logger.
*/
package log
