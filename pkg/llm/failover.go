package llm

import (
	"context"

	"colorix-agent-go/pkg/log"
)

// Gateway 是编排层看到的生成入口。prefer 可指定本次调用的首选提供商名称，
// 传空字符串则使用进程级默认首选方。
type Gateway interface {
	Invoke(ctx context.Context, messages []Message, prefer string) (string, error)
}

// FailoverGateway 持有按序的一对提供商：有效首选方失败时，
// 用相同的消息调用另一方恰好一次；两方都失败则向上传播错误。
// 不做重试循环，最坏延迟被限定在两次提供商往返。
type FailoverGateway struct {
	primary        Provider
	secondary      Provider
	defaultPrimary string
}

// NewFailoverGateway 创建一个新的 FailoverGateway。
func NewFailoverGateway(primary, secondary Provider, defaultPrimary string) *FailoverGateway {
	return &FailoverGateway{
		primary:        primary,
		secondary:      secondary,
		defaultPrimary: defaultPrimary,
	}
}

// Invoke 先调用有效首选方，失败时记录告警并切换到另一方。
func (g *FailoverGateway) Invoke(ctx context.Context, messages []Message, prefer string) (string, error) {
	first, second := g.order(prefer)

	text, err := first.Generate(ctx, messages)
	if err == nil {
		return text, nil
	}
	// 故障转移事件必须可见，便于运维发现提供商退化。
	log.Warnf("[LLMGateway] 首选提供商 %s 调用失败 (%v)，切换到 %s", first.Name(), err, second.Name())

	text, err = second.Generate(ctx, messages)
	if err != nil {
		log.Errorf("[LLMGateway] 备用提供商 %s 同样失败: %v", second.Name(), err)
		return "", err
	}
	return text, nil
}

// order 根据 prefer（或默认首选方）决定调用顺序。
// 未知名称按默认顺序处理。
func (g *FailoverGateway) order(prefer string) (Provider, Provider) {
	name := prefer
	if name == "" {
		name = g.defaultPrimary
	}
	if name == g.secondary.Name() {
		return g.secondary, g.primary
	}
	return g.primary, g.secondary
}
