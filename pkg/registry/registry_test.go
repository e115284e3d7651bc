package registry

import (
	"context"
	"testing"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/stretchr/testify/require"
)

func greetIntent() contracts.IntentReference {
	return contracts.IntentReference{Name: "greet", Version: "1.0.0"}
}

type fakeAgent struct {
	def contracts.AgentDefinition
}

func (f fakeAgent) Definition() contracts.AgentDefinition { return f.def }

func (f fakeAgent) Invoke(ctx context.Context, env contracts.IntentEnvelope) (contracts.AgentResponse, error) {
	return contracts.AgentResponse{Status: contracts.StatusSuccess}, nil
}

func agentFor(name string, intent contracts.IntentReference) fakeAgent {
	return fakeAgent{def: contracts.AgentDefinition{
		Name:         name,
		Capabilities: []contracts.Capability{{Intent: intent}},
	}}
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := New()
	a := agentFor("greeter", greetIntent())

	require.NoError(t, r.Register(a))

	err := r.Register(a)
	require.Error(t, err)
	ie, ok := ierrors.As(err)
	require.True(t, ok)
	require.Equal(t, ierrors.CodeDuplicateAgent, ie.Code)
}

func TestFindAgentsForIntent_OnlyMatchesDeclaredCapability(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(agentFor("greeter", greetIntent())))
	require.NoError(t, r.Register(agentFor("farewell", contracts.IntentReference{Name: "farewell", Version: "1.0.0"})))

	matches := r.FindAgentsForIntent(greetIntent())
	require.Len(t, matches, 1)
	require.Equal(t, "greeter", matches[0].Definition().Name)
}

func TestFindAgentsForIntent_PreservesRegistrationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(agentFor("b", greetIntent())))
	require.NoError(t, r.Register(agentFor("a", greetIntent())))

	matches := r.FindAgentsForIntent(greetIntent())
	require.Len(t, matches, 2)
	require.Equal(t, "b", matches[0].Definition().Name)
	require.Equal(t, "a", matches[1].Definition().Name)
}

func TestUnregister_RemovesAgent(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(agentFor("greeter", greetIntent())))

	r.Unregister("greeter")
	_, ok := r.Get("greeter")
	require.False(t, ok)
	require.Empty(t, r.FindAgentsForIntent(greetIntent()))
}

func TestList_SortedByName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(agentFor("zeta", greetIntent())))
	require.NoError(t, r.Register(agentFor("alpha", greetIntent())))

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "alpha", list[0].Name)
	require.Equal(t, "zeta", list[1].Name)
}
