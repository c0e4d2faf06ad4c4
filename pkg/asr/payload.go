package asr

import (
	"fmt"
	"hash/crc32"
	"os"

	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// Payload 一次同步识别请求携带的音频数据
type Payload struct {
	AudioPath  string // 音频分片文件路径
	FileBinary []byte // 文件二进制内容
	CRC32Hex   string // 文件CRC32校验和（十六进制）
}

// LoadPayload 从文件加载音频数据并计算校验和
func LoadPayload(audioPath string) (*Payload, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("无效的音频路径 %s: %w", audioPath, err)
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("读取音频文件失败: %w", err)
	}

	p := &Payload{
		AudioPath:  audioPath,
		FileBinary: data,
		CRC32Hex:   fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)),
	}

	utils.Debug("加载音频分片 %s, 大小%s, CRC32=%s",
		audioPath, utils.FormatFileSize(int64(len(data))), p.CRC32Hex)

	return p, nil
}
