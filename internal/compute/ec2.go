package compute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

var ErrNotConfigured = errors.New("no EC2 instance configured")

// EC2API is the slice of the EC2 client this package calls.
type EC2API interface {
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

type Instance struct {
	ID       string
	State    string
	PublicIP string
}

type Manager struct {
	api        EC2API
	instanceID string
	maxWait    time.Duration
	waitOpts   []func(*ec2.InstanceRunningWaiterOptions)
}

// New builds a Manager from the default AWS credential chain.
func New(ctx context.Context, region, instanceID string, maxWait time.Duration) (*Manager, error) {
	if instanceID == "" {
		return nil, ErrNotConfigured
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(ec2.NewFromConfig(cfg), instanceID, maxWait), nil
}

func NewWithAPI(api EC2API, instanceID string, maxWait time.Duration) *Manager {
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &Manager{api: api, instanceID: instanceID, maxWait: maxWait}
}

func (m *Manager) InstanceID() string { return m.instanceID }

// Start boots the instance and waits until it is running, bounded by the
// configured max wait and ctx, then reports its public address.
func (m *Manager) Start(ctx context.Context) (Instance, error) {
	ids := []string{m.instanceID}
	if _, err := m.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids}); err != nil {
		return Instance{ID: m.instanceID}, fmt.Errorf("start instance: %w", err)
	}
	slog.Info("ec2 start requested", "instanceID", m.instanceID)

	waiter := ec2.NewInstanceRunningWaiter(m.api, m.waitOpts...)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, m.maxWait); err != nil {
		return Instance{ID: m.instanceID}, fmt.Errorf("wait for running: %w", err)
	}
	slog.Info("ec2 instance running", "instanceID", m.instanceID)
	return m.Describe(ctx)
}

func (m *Manager) Stop(ctx context.Context) (Instance, error) {
	out, err := m.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{m.instanceID}})
	if err != nil {
		return Instance{ID: m.instanceID}, fmt.Errorf("stop instance: %w", err)
	}
	inst := Instance{ID: m.instanceID, State: string(types.InstanceStateNameStopping)}
	for _, ch := range out.StoppingInstances {
		if aws.ToString(ch.InstanceId) == m.instanceID && ch.CurrentState != nil {
			inst.State = string(ch.CurrentState.Name)
		}
	}
	slog.Info("ec2 stop requested", "instanceID", m.instanceID, "state", inst.State)
	return inst, nil
}

func (m *Manager) Describe(ctx context.Context) (Instance, error) {
	out, err := m.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{m.instanceID}})
	if err != nil {
		return Instance{ID: m.instanceID}, fmt.Errorf("describe instance: %w", err)
	}
	for _, r := range out.Reservations {
		for _, in := range r.Instances {
			inst := Instance{ID: aws.ToString(in.InstanceId), PublicIP: aws.ToString(in.PublicIpAddress)}
			if in.State != nil {
				inst.State = string(in.State.Name)
			}
			return inst, nil
		}
	}
	return Instance{ID: m.instanceID}, fmt.Errorf("instance %s not found in describe output", m.instanceID)
}

// Explain turns an EC2 failure into a message fit for a chat reply.
func Explain(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return "No EC2 instance is configured. Set EC2_INSTANCE_ID."
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled."
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed":
			return "Instance ID not found. Verify the configured instance exists."
		case "IncorrectInstanceState", "InvalidInstanceState":
			return "Instance is not in a valid state for this action (already running or stopped?)."
		case "UnauthorizedOperation", "AuthFailure":
			return "AWS rejected the credentials for this action."
		}
		return apiErr.ErrorMessage()
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "exceeded max wait time"), errors.Is(err, context.DeadlineExceeded):
		return "Instance start timed out. Check the AWS console."
	case strings.Contains(msg, "failed to retrieve credentials"), strings.Contains(msg, "no EC2 IMDS role found"):
		return "AWS credentials not found. Check env vars or ~/.aws/config."
	}
	return msg
}
