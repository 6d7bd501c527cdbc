// Package sequence allocates supplier order numbers of the form CMD + YYMM + NNN.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	NumberPrefix = "CMD"
	// MaxSequence 每月最多999张订单，超出不回绕
	MaxSequence = 999
	seqDigits   = 3
)

var ErrSequenceExhausted = errors.New("本月订单编号已用尽")

// NumberSource 读取某前缀下已有的最大编号，需在写入订单的同一事务中调用
type NumberSource interface {
	MaxOrderNumber(ctx context.Context, prefix string) (string, error)
}

// Generator 订单编号生成器
type Generator struct {
	now      func() time.Time
	location *time.Location
}

// NewGenerator clock 为 nil 时使用 time.Now；loc 为 nil 时使用 UTC
func NewGenerator(clock func() time.Time, loc *time.Location) *Generator {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{now: clock, location: loc}
}

// Now 当前时间（已换算到业务时区）
func (g *Generator) Now() time.Time {
	return g.now().In(g.location)
}

// Prefix CMD + 两位年 + 两位月
func Prefix(t time.Time) string {
	return NumberPrefix + t.Format("0601")
}

// Format 拼接前缀和序号
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, seqDigits, seq)
}

// ParseSequence 取编号末三位
func ParseSequence(number string) (int, error) {
	if len(number) < len(NumberPrefix)+4+seqDigits {
		return 0, fmt.Errorf("订单编号格式错误: %q", number)
	}
	seq, err := strconv.Atoi(number[len(number)-seqDigits:])
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("订单编号格式错误: %q", number)
	}
	return seq, nil
}

// Next 生成 at 所在月份的下一个编号
func (g *Generator) Next(ctx context.Context, src NumberSource, at time.Time) (string, error) {
	prefix := Prefix(at.In(g.location))

	last, err := src.MaxOrderNumber(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("查询最大订单编号失败: %w", err)
	}

	seq := 0
	if last != "" {
		seq, err = ParseSequence(last)
		if err != nil {
			return "", err
		}
	}
	if seq >= MaxSequence {
		return "", fmt.Errorf("%w: %s", ErrSequenceExhausted, prefix)
	}
	return Format(prefix, seq+1), nil
}
