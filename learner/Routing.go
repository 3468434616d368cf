// Package learner implements the training control loops that drive
// environment rollouts, route experience to policies, and run
// scheduled evaluation with early stopping.
package learner

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/gorl/exploration"
	"github.com/samuelfneumann/gorl/policy"
)

// Routing resolves agents to the policy that acts for them and,
// optionally, to an exploration scheme applied on top of the policy's
// actions. The table is built once and validated eagerly: an agent
// routed to an unregistered policy or scheme is a configuration
// error, not a runtime fault.
type Routing struct {
	policies map[string]policy.Policy
	schemes  map[string]exploration.Scheme

	agentPolicy map[string]string
	agentScheme map[string]string
}

// NewRouting creates and returns a new Routing table. Every agent in
// agentToPolicy must map to the name of one of the argument policies;
// every agent in agentToScheme must map to a key of schemes and must
// also appear in agentToPolicy. Agents absent from agentToScheme use
// raw policy actions.
func NewRouting(policies []policy.Policy, agentToPolicy map[string]string,
	schemes map[string]exploration.Scheme,
	agentToScheme map[string]string) (*Routing, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("newRouting: at least one policy required")
	}
	if len(agentToPolicy) == 0 {
		return nil, fmt.Errorf("newRouting: at least one agent required")
	}

	byName := make(map[string]policy.Policy, len(policies))
	for _, p := range policies {
		if _, ok := byName[p.Name()]; ok {
			return nil, fmt.Errorf("newRouting: duplicate policy name %v",
				p.Name())
		}
		byName[p.Name()] = p
	}

	for agent, policyName := range agentToPolicy {
		if _, ok := byName[policyName]; !ok {
			return nil, fmt.Errorf("newRouting: agent %v routed to "+
				"unregistered policy %v", agent, policyName)
		}
	}

	for agent, schemeName := range agentToScheme {
		if _, ok := agentToPolicy[agent]; !ok {
			return nil, fmt.Errorf("newRouting: agent %v has an "+
				"exploration scheme but no policy", agent)
		}
		if _, ok := schemes[schemeName]; !ok {
			return nil, fmt.Errorf("newRouting: agent %v routed to "+
				"unregistered exploration scheme %v", agent, schemeName)
		}
	}

	return &Routing{
		policies:    byName,
		schemes:     schemes,
		agentPolicy: agentToPolicy,
		agentScheme: agentToScheme,
	}, nil
}

// PolicyNamed returns the registered policy with the given name.
func (r *Routing) PolicyNamed(name string) (policy.Policy, error) {
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("policyNamed: no policy registered with "+
			"name %v", name)
	}
	return p, nil
}

// Policy returns the policy that acts for the given agent.
func (r *Routing) Policy(agent string) (policy.Policy, error) {
	name, ok := r.agentPolicy[agent]
	if !ok {
		return nil, fmt.Errorf("policy: no policy routed for agent %v",
			agent)
	}
	return r.policies[name], nil
}

// Scheme returns the exploration scheme of the given agent, if any.
func (r *Routing) Scheme(agent string) (exploration.Scheme, bool) {
	name, ok := r.agentScheme[agent]
	if !ok {
		return nil, false
	}
	return r.schemes[name], true
}

// Policies returns all registered policies ordered by name.
func (r *Routing) Policies() []policy.Policy {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)

	policies := make([]policy.Policy, len(names))
	for i, name := range names {
		policies[i] = r.policies[name]
	}
	return policies
}

// Schemes returns all registered exploration schemes ordered by name.
func (r *Routing) Schemes() []exploration.Scheme {
	names := make([]string, 0, len(r.schemes))
	for name := range r.schemes {
		names = append(names, name)
	}
	sort.Strings(names)

	schemes := make([]exploration.Scheme, len(names))
	for i, name := range names {
		schemes[i] = r.schemes[name]
	}
	return schemes
}

// AgentToPolicy returns a copy of the agent to policy-name mapping.
func (r *Routing) AgentToPolicy() map[string]string {
	mapping := make(map[string]string, len(r.agentPolicy))
	for agent, name := range r.agentPolicy {
		mapping[agent] = name
	}
	return mapping
}

// ExplorationParameters returns the current parameters of every
// registered exploration scheme, keyed by scheme name. Used for
// diagnostics only.
func (r *Routing) ExplorationParameters() map[string]map[string]float64 {
	params := make(map[string]map[string]float64, len(r.schemes))
	for name, scheme := range r.schemes {
		params[name] = scheme.Parameters()
	}
	return params
}
