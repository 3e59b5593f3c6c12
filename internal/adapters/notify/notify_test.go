package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/okian/judgeflow/internal/domain/model"
)

func startNATS(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:  "127.0.0.1",
		Port:  -1,
		NoLog: true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server not ready")
	}

	nc, err := nats.Connect(ns.ClientURL(), nats.Timeout(2*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns, nc
}

func TestNATSPublisher_PublishesOnFloorSubject(t *testing.T) {
	ns, sub := startNATS(t)

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("plans.>", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	pub, err := Connect(ns.ClientURL(), WithSubject("plans."), WithFlush(time.Second))
	require.NoError(t, err)
	defer func() { require.NoError(t, pub.Close()) }()

	ev := PlanEvent{
		FloorID:   "floor-1",
		RequestID: "r-1",
		Assignments: []model.Assignment{
			{ID: "a1", JudgeID: "j1", TeamIDs: []string{"t1", "t2"}, FloorID: "floor-1"},
		},
		Failures: []model.Failure{{JudgeID: "j2", JudgeName: "Bob", Kind: "judge_busy", Reason: "already has an active assignment"}},
		Summary:  model.Summary{Requested: 2, Created: 1, Failed: 1},
		Message:  "1 assignment created. Could not assign: Bob (already has an active assignment)",
	}
	require.NoError(t, pub.PublishPlan(context.Background(), ev))

	select {
	case msg := <-msgs:
		require.Equal(t, "plans.floor-1", msg.Subject)
		var got PlanEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, "r-1", got.RequestID)
		require.Equal(t, []string{"t1", "t2"}, got.Assignments[0].TeamIDs)
		require.Equal(t, "Bob", got.Failures[0].JudgeName)
		require.False(t, got.PublishedAt.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("plan event not received")
	}
}

func TestNATSPublisher_SharedConnectionStaysOpen(t *testing.T) {
	_, nc := startNATS(t)

	pub := NewNATSPublisher(nc)
	require.Equal(t, "judgeflow.plans.hall_a", pub.Subject("hall a"))
	require.NoError(t, pub.Close())
	require.False(t, nc.IsClosed())

	nc.Close()
	require.ErrorIs(t, pub.PublishPlan(context.Background(), PlanEvent{FloorID: "f1"}), ErrClosed)
}

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"":          "_",
		"f1":        "f1",
		"east.wing": "east_wing",
		"a*b>c":     "a_b_c",
	}
	for in, want := range cases {
		require.Equal(t, want, subjectToken(in), in)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.PublishPlan(context.Background(), PlanEvent{}))
	require.NoError(t, p.Close())
}
