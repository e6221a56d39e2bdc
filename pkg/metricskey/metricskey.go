package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMMessagesSent is base for counter metric for total messages sent to LLM
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsAgentRunsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_runs_succeeded",
		Help:         "stats_agent_runs_succeeded provides total agent runs that produced an answer",
		RequiredTags: []string{"agent"},
	}

	StatsAgentRunsAborted = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_runs_aborted",
		Help:         "stats_agent_runs_aborted provides total agent runs that ended in Aborted state",
		RequiredTags: []string{"agent", "reason"},
	}

	StatsAgentSteps = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_steps",
		Help:         "stats_agent_steps provides total Thinking steps taken by agents",
		RequiredTags: []string{"agent"},
	}

	StatsAgentLLMRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_llm_retried",
		Help:         "stats_agent_llm_retried provides total model calls retried after upstream errors",
		RequiredTags: []string{"agent"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed by failure kind",
		RequiredTags: []string{"tool", "kind"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsRejected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_rejected",
		Help:         "stats_tool_calls_rejected provides total tool calls with malformed arguments",
		RequiredTags: []string{"tool"},
	}

	StatsChatSubmissions = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_chat_submissions",
		Help:         "stats_chat_submissions provides total queries submitted to chat sessions",
		RequiredTags: []string{"surface"},
	}

	StatsChatErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_chat_errors",
		Help:         "stats_chat_errors provides total chat turns rendered as errors",
		RequiredTags: []string{"surface"},
	}
)

// Perf
var (
	PerfChatSubmit = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_chat_submit",
		Help:         "perf_chat_submit provides duration of chat turn",
		RequiredTags: []string{"surface"},
	}

	PerfAgentRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_agent_run",
		Help:         "perf_agent_run provides duration of agent run",
		RequiredTags: []string{"agent"},
	}

	PerfLLMCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_llm_call",
		Help:         "perf_llm_call provides duration of model call",
		RequiredTags: []string{"agent", "model"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgentRun,
	&PerfChatSubmit,
	&PerfLLMCall,
	&PerfToolCall,
	&StatsAgentLLMRetried,
	&StatsAgentRunsAborted,
	&StatsAgentRunsSucceeded,
	&StatsAgentSteps,
	&StatsChatErrors,
	&StatsChatSubmissions,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsRejected,
	&StatsToolCallsSucceeded,
}
