package llm

import "os"

// Agent environment detection. When an AI coding agent drives the CLI, run
// commands default to JSON line output so the caller reads events instead of
// spinner frames. MATINEE_CALLER=llm forces it for anything undetected.

// AgentInfo describes the detected agent environment
type AgentInfo struct {
	IsAgent bool
	Tool    string
}

// IsAgentEnvironment returns true if an LLM agent appears to be driving
func IsAgentEnvironment() bool {
	return DetectAgent().IsAgent
}

// DetectAgent identifies which agent tool is driving, if any
func DetectAgent() AgentInfo {
	// Explicit caller override
	if os.Getenv("MATINEE_CALLER") == "llm" {
		return AgentInfo{IsAgent: true, Tool: "generic-llm"}
	}

	// Claude Code
	if os.Getenv("CLAUDECODE") != "" || os.Getenv("CLAUDE_CODE_ENTRYPOINT") != "" {
		return AgentInfo{IsAgent: true, Tool: "claude-code"}
	}

	// Cursor
	if os.Getenv("CURSOR") != "" {
		return AgentInfo{IsAgent: true, Tool: "cursor"}
	}

	// GitHub Copilot (if it sets identifying vars)
	if os.Getenv("GITHUB_COPILOT") != "" {
		return AgentInfo{IsAgent: true, Tool: "github-copilot"}
	}

	return AgentInfo{}
}
