package knowledge

import "github.com/hrdesk/hr-assistant/internal/model"

// DefaultArticles returns the starter articles seeded into an empty knowledge base.
func DefaultArticles() []model.KnowledgeArticle {
	return []model.KnowledgeArticle{
		{
			Title: "Как оформить отпуск",
			Content: `Для оформления отпуска необходимо:

1. Подать заявление на отпуск не менее чем за 2 недели до планируемой даты
2. Согласовать даты с непосредственным руководителем
3. Передать текущие дела коллегам или временно замещающему сотруднику
4. Уведомить клиентов о временном отсутствии (если применимо)

📝 Заявление подается через корпоративную систему или в кадровую службу.
⏰ Минимальная продолжительность отпуска - 3 дня.
📅 Ежегодный оплачиваемый отпуск составляет 28 календарных дней.`,
			Category: "отпуск",
			Tags:     "отпуск, заявление, отдых, календарь",
		},
		{
			Title: "Процедура оформления больничного листа",
			Content: `При болезни необходимо:

1. В первый день болезни уведомить непосредственного руководителя до 10:00
2. Обратиться к врачу и получить больничный лист
3. В течение 3 дней после выздоровления предоставить больничный лист в кадровую службу
4. Заполнить уведомление о временной нетрудоспособности

💊 Больничный оплачивается согласно трудовому законодательству.
📋 Электронные больничные листы принимаются наравне с бумажными.
⚕️ При болезни более 3 дней обязательно предоставление медицинской справки.`,
			Category: "больничный",
			Tags:     "больничный, болезнь, медицина, справка",
		},
		{
			Title: "График рабочего времени",
			Content: `Стандартный рабочий график:

🕘 Начало рабочего дня: 9:00
🕔 Окончание рабочего дня: 18:00
🕐 Обеденный перерыв: 13:00-14:00
📅 Рабочие дни: понедельник-пятница

Гибкий график:
- Возможность начинать работу с 8:00 до 10:00
- Соответствующий сдвиг окончания рабочего дня
- Обязательное присутствие в офисе с 10:00 до 16:00

📝 Изменения в графике согласовываются с руководителем.
🏠 Возможность удаленной работы обсуждается индивидуально.`,
			Category: "рабочее время",
			Tags:     "график, время, работа, офис, гибкий график",
		},
		{
			Title: "Корпоративные льготы и компенсации",
			Content: `Доступные льготы:

💼 ДМС (добровольное медицинское страхование)
🚗 Компенсация транспортных расходов
🍽️ Субсидированное питание в корпоративной столовой
📚 Компенсация обучения и профессиональных курсов
🏋️ Корпоративный фитнес
🎯 Программа лояльности с бонусами

Условия получения:
- Испытательный срок должен быть успешно пройден
- Стаж работы в компании от 3 месяцев
- Отсутствие дисциплинарных взысканий

📋 Подробности уточняйте в кадровой службе.`,
			Category: "льготы",
			Tags:     "льготы, компенсации, ДМС, фитнес, обучение",
		},
		{
			Title: "Техническая поддержка и IT-оборудование",
			Content: `Для решения технических вопросов:

💻 Заявки на IT-поддержку подаются через корпоративную систему
📞 Телефон службы поддержки: доб. 100
🔧 Время работы поддержки: 9:00-18:00 в рабочие дни

Стандартное оборудование:
- Рабочий компьютер или ноутбук
- Монитор (по запросу второй)
- Клавиатура и мышь
- Корпоративный телефон (при необходимости)

⚠️ Личное использование корпоративного оборудования ограничено.
🔒 Обязательно соблюдение политики информационной безопасности.`,
			Category: "оборудование",
			Tags:     "IT, компьютер, техника, поддержка, оборудование",
		},
	}
}
