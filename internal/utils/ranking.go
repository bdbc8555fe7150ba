package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64 // 时间重力 (1.5)
	WeightComment  float64 // 2.0
	WeightUpvote   float64 // 1.0
	WeightDownvote float64 // 1.5
	ScaleFactor    float64 // 放大系数 (100)
}

var DefaultConfig = RankConfig{
	Gravity:        1.5,
	WeightComment:  2.0,
	WeightUpvote:   1.0,
	WeightDownvote: 1.5,
	ScaleFactor:    100.0, // 让分数落在 0-100 区间，像"温度"
}

// CalculateScore 以 now 为基准计算热度分
func CalculateScore(now, t time.Time, up, down, comment int) float64 {
	hours := now.Sub(t).Hours()
	if hours < 0 {
		hours = 0
	}

	// 1. 计算加权互动值 (Weighted Sum)
	weightedSum := (float64(up) * DefaultConfig.WeightUpvote) +
		(float64(comment) * DefaultConfig.WeightComment) -
		(float64(down) * DefaultConfig.WeightDownvote)

	// 2. 基础修正
	if weightedSum < 0 {
		weightedSum = 0 // 防止负数无法取对数
	}

	// 3. 对数平滑 (Log Smoothing)
	// log10(sum + 1) -> 确保 sum=0 时结果为 0
	logScore := math.Log10(weightedSum + 1)

	// 4. 放大系数 (0.x -> 几十)
	numerator := logScore * DefaultConfig.ScaleFactor

	// 5. 时间衰减 (分母)
	decay := math.Pow(hours+2, DefaultConfig.Gravity)

	return numerator / decay
}
