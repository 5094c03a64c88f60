package kafka

const (
	TopicWorkflowCompleted = "quorum.workflow.completed"
	TopicTradeExecuted     = "quorum.trade.executed"
	TopicAgentHealth       = "quorum.agents.health"
)

// Topics lists every topic the advisor publishes to
func Topics() []string {
	return []string{TopicWorkflowCompleted, TopicTradeExecuted, TopicAgentHealth}
}
