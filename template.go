package mlang

import "fmt"

// TemplateGenerator produces starter swarm programs for a given name.
type TemplateGenerator interface {
	Generate(name string) string
}

// DefaultTemplateGenerator emits a minimal two-agent sequential pipeline that
// compiles as-is.
type DefaultTemplateGenerator struct{}

// Generate returns a starter program named after the swarm.
func (DefaultTemplateGenerator) Generate(name string) string {
	if name == "" {
		name = "my_swarm"
	}
	return fmt.Sprintf(`swarm %s {
    agent researcher {
        role: "Research the given topic"
        capabilities: "llm"
        inputs: "topic"
        outputs: "findings"
        config: {
            model: "claude-3-5-sonnet-20241022"
            temperature: 0.7
        }
    }

    agent writer {
        role: "Write a summary from research findings"
        capabilities: "llm"
        inputs: "findings"
        outputs: "summary"
        config: {
            model: "claude-3-5-sonnet-20241022"
            temperature: 0.5
        }
    }

    workflow sequential {
        researcher(input: "topic", output: "findings")
        writer(input: "findings", output: "summary")
    }
}
`, name)
}
